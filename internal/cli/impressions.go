package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/personaflow/internal/config"
	"github.com/lazypower/personaflow/internal/hooks"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/store"
)

var impressionsCmd = &cobra.Command{
	Use:   "impressions",
	Short: "Inspect or forget stored user impressions",
}

var impressionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored impression",
	RunE:  runImpressionsList,
}

var impressionsDeleteCmd = &cobra.Command{
	Use:   "delete <user_id>",
	Short: "Forget a user's impression and chat log",
	Args:  cobra.ExactArgs(1),
	RunE:  runImpressionsDelete,
}

func init() {
	impressionsCmd.AddCommand(impressionsListCmd)
	impressionsCmd.AddCommand(impressionsDeleteCmd)
}

// serverClient returns a client for the configured server.
// PERSONAFLOW_URL wins over the configured listen address.
func serverClient(cfg config.Config) *hooks.Client {
	if os.Getenv("PERSONAFLOW_URL") != "" {
		return hooks.NewClient()
	}
	return hooks.NewClientURL("http://" + cfg.ListenAddr())
}

// openDB opens the database directly, for when no server is running.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

func runImpressionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := serverClient(cfg)
	if client.Healthy() {
		data, err := client.Get("/api/impressions")
		if err != nil {
			return err
		}
		var resp struct {
			Report string `json:"report"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("decode impressions: %w", err)
		}
		fmt.Println(resp.Report)
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	list, err := db.ListImpressions()
	if err != nil {
		return err
	}
	fmt.Println(persona.FormatReport(list))
	return nil
}

func runImpressionsDelete(cmd *cobra.Command, args []string) error {
	userID := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The running server owns the prompt cache, so deletes go through it.
	client := serverClient(cfg)
	if client.Healthy() {
		_, err := client.Delete(hooks.ImpressionPath(userID))
		var se *hooks.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			fmt.Printf("No record found for user %s.\n", userID)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Deleted impression and chat log for user %s.\n", userID)
		return nil
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	found, err := db.DeleteUser(userID)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No record found for user %s.\n", userID)
		return nil
	}
	fmt.Printf("Deleted impression and chat log for user %s.\n", userID)
	return nil
}
