package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lazypower/personaflow/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "personaflow",
	Short: "Relationship memory for chat-bot personas",
	Long: "Personaflow records who a chat persona talks to, periodically summarizes each relationship " +
		"with an LLM and renders the result into the persona's system prompt.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $PERSONAFLOW_CONFIG or ~/.personaflow/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(impressionsCmd)
	rootCmd.AddCommand(personasCmd)
}

// resolveConfigPath picks the config file: flag, then env, then the default
// location if it exists. Empty means run on defaults.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv("PERSONAFLOW_CONFIG"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".personaflow", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func loadConfig() (config.Config, error) {
	return config.Load(resolveConfigPath(configPath))
}
