package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jan-janssen/gmailsorter/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	databaseURL string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gmailsorter",
	Short: "Sort Gmail messages into labels with per-label classifiers",
	Long: `gmailsorter keeps a local copy of your Gmail messages, trains one
classifier per user label and moves new mail out of the sorter label into
the label it most likely belongs to.

Examples:
  gmailsorter update                 # sync every mailbox and retrain
  gmailsorter filter --label mailsortinbox
  gmailsorter daemon --scheduled     # first updates plus all filters
  gmailsorter serve                  # HTTP API, scheduler and push listener`,
	SilenceUsage: true,
}

// Execute runs the command line interface
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default ./gmailsorter.yaml)")
	rootCmd.PersistentFlags().StringVarP(&databaseURL, "database", "d", "", "database url, e.g. sqlite://email.db")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	return newApp(cfg)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}
	return nil
}
