package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lazypower/personaflow/internal/hooks"
	"github.com/lazypower/personaflow/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Inspect dynamic personas",
}

var personasShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current dynamic system prompt",
	RunE:  runPersonasShow,
}

func init() {
	personasCmd.AddCommand(personasShowCmd)
}

func runPersonasShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Persona.PersonasName == "" {
		return fmt.Errorf("personas_name is not configured")
	}
	id := persona.DynamicID(cfg.Persona.PersonasName, cfg.Persona.DynamicSuffix)

	client := serverClient(cfg)
	if client.Healthy() {
		data, err := client.Get("/api/personas/dynamic")
		var se *hooks.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			fmt.Printf("No dynamic prompt for %s yet.\n", id)
			return nil
		}
		if err != nil {
			return err
		}
		var resp struct {
			SystemPrompt string `json:"system_prompt"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("decode persona: %w", err)
		}
		fmt.Printf("## %s\n\n%s\n", id, resp.SystemPrompt)
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := db.GetDynamicPersona(id)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Printf("No dynamic prompt for %s yet.\n", id)
		return nil
	}
	fmt.Printf("## %s\n\n%s\n", id, p.SystemPrompt)
	return nil
}
