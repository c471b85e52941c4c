package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dragon-zzuni/smart-assistant/internal/api"
	"github.com/dragon-zzuni/smart-assistant/internal/services"
)

const shutdownTimeout = 10 * time.Second

// serveCmd starts the API server and the periodic run scheduler
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Serve the HTTP API. When a schedule interval is configured, runs are
also triggered periodically in the background.`,
	Run: func(cmd *cobra.Command, args []string) {
		assistant := services.NewAssistantServiceFromConfig(db, logService, cfg)

		router, keys, err := api.SetupRouter(cfg, assistant, logService)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to setup router: %v\n", err)
			os.Exit(1)
		}

		var scheduler *services.RunScheduler
		if interval := cfg.Pipeline.ScheduleInterval(); interval > 0 {
			scheduler = services.NewRunScheduler(assistant, interval)
			scheduler.Start()
		}

		srv := &http.Server{
			Addr:    ":" + cfg.APIPort,
			Handler: router,
		}

		log.WithFields(log.Fields{
			"port":     cfg.APIPort,
			"data_dir": cfg.DataDir,
			"database": cfg.DatabasePath,
			"mode":     assistant.Mode(),
		}).Info("[Server] Starting smart-assistant")
		fmt.Printf("API Key: %s\n", keys.Key())

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("[Server] Listen failed")
				os.Exit(1)
			}
		case sig := <-quit:
			log.WithField("signal", sig.String()).Info("[Server] Shutting down")
		}

		if scheduler != nil {
			scheduler.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("[Server] Shutdown incomplete")
		}
	},
}
