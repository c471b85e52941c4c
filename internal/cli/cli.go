package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dragon-zzuni/smart-assistant/internal/api/middleware"
	"github.com/dragon-zzuni/smart-assistant/internal/config"
	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
	logService    *services.LogService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "smart-assistant",
	Short: "Message aggregation and todo assistant",
	Long: `smart-assistant collects chat and mail messages, ranks and analyzes
them, and builds a prioritized todo list with a plain-text report.

Without a subcommand it starts the API server.

Examples:
  smart-assistant run              # run the pipeline once and print the report
  smart-assistant run --json       # print the todo list as JSON
  smart-assistant serve            # start the API server and scheduler
  smart-assistant key show         # show the current API key
  smart-assistant key reset        # reset the API key`,
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config
	logService = services.NewLogServiceWithLevel(db, cfg.LogLevel)

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keyCmd)
}
