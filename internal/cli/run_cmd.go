package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

var (
	runJSON    bool
	runNoJudge bool
)

// runCmd executes one pipeline run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: `Collect from every configured source, analyze the messages and print
the todo report. Sources that fail are skipped and listed in the output.`,
	Run: func(cmd *cobra.Command, args []string) {
		if runNoJudge {
			cfg.Judge.APIKey = ""
		}
		if err := promptIMAPPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read password: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		assistant := services.NewAssistantServiceFromConfig(db, logService, cfg)
		result, err := assistant.Run(ctx)
		if errors.Is(err, services.ErrNothingCollected) {
			fmt.Fprintln(os.Stderr, "Nothing collected: no source yielded a usable message.")
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", err)
			os.Exit(1)
		}

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Todo); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to encode result: %v\n", err)
				os.Exit(1)
			}
			return
		}

		fmt.Print(result.Report)
		if len(result.SourceFailures) > 0 {
			fmt.Printf("\nUnavailable sources: %s\n", strings.Join(result.SourceFailures, ", "))
		}
		if result.ArchivePath != "" {
			fmt.Printf("Archived to %s\n", result.ArchivePath)
		}
	},
}

// promptIMAPPassword asks for the mailbox password when a host is configured
// without one and stdin is interactive
func promptIMAPPassword() error {
	imapCfg := &cfg.Sources.IMAP
	if imapCfg.Host == "" || imapCfg.Password != "" || imapCfg.OAuthRefreshToken != "" {
		return nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil
	}

	fmt.Printf("IMAP password for %s@%s: ", imapCfg.Username, imapCfg.Host)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}
	imapCfg.Password = string(passwordBytes)
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the todo list as JSON instead of the report")
	runCmd.Flags().BoolVar(&runNoJudge, "no-judge", false, "skip the judgment capability and use local heuristics only")
}
