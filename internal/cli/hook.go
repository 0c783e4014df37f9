package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/personaflow/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle chat host hook events",
	Long:  "Hook commands read one event as JSON on stdin and always exit 0.",
}

var hookRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Pre-request hook: print the dynamic system prompt",
	Run: func(cmd *cobra.Command, args []string) {
		hookFromConfig("request")
	},
}

var hookResponseCmd = &cobra.Command{
	Use:   "response",
	Short: "Post-response hook: record the exchange",
	Run: func(cmd *cobra.Command, args []string) {
		hookFromConfig("response")
	},
}

func init() {
	hookCmd.AddCommand(hookRequestCmd)
	hookCmd.AddCommand(hookResponseCmd)
}

// hookFromConfig runs a hook against the configured server. A broken config
// is reported but does not stop the hook.
func hookFromConfig(event string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "personaflow hook: load config: %v\n", err)
	}
	runHook(cfg.Hooks.Enabled, serverClient(cfg), event, os.Stdin, os.Stdout)
}

// runHook forwards one event unless hooks are disabled. A disabled request
// hook still prints an empty prompt so the host keeps its default persona.
func runHook(enabled bool, client *hooks.Client, event string, stdin io.Reader, stdout io.Writer) {
	if !enabled {
		if event == "request" {
			hooks.WriteRequestOutput(stdout, "", "")
		}
		return
	}
	hooks.HandleWith(client, event, stdin, stdout)
}
