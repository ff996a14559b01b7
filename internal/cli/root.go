// Package cli is the observe-dashboard command line: the HTTP server and
// one-shot commands that drive the Observe API with an access token.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"observe/dashboard/internal/config"
)

var (
	configPath   string
	outputFormat string
	accessToken  string
	apiURL       string
	assumeYes    bool
	verbose      bool
	version      = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "observe-dashboard",
	Short: "Administer an Observe API instance",
	Long: `Dashboard for the Observe API.

Run "serve" to expose the dashboard HTTP API, or use the resource commands
directly with an Observe access token.

Quick Start:
  observe-dashboard serve                       # start the HTTP server
  observe-dashboard traces list --token <t>     # list traces
  observe-dashboard photos delete <id> --yes    # delete without asking
  observe-dashboard users promote <osmId>       # grant admin`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", "", "Observe access token (defaults to observe.access_token)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Observe API base URL (defaults to observe.api_url)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation prompt")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log Observe API calls to stderr")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.Observe.APIURL = apiURL
	}
	if accessToken != "" {
		cfg.Observe.AccessToken = accessToken
	}
	return cfg, nil
}

// commandLogger is silent unless --verbose is given; command output goes
// to stdout and must stay parseable.
func commandLogger(cfg *config.Config) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return config.NewLogger(cfg.Log)
}
