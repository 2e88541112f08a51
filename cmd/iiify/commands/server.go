package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/logger"
	"github.com/teranos/iiify/server"
)

// ServerCmd starts the iiify HTTP server and import workers
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Start the iiify server",
	Long: `Start the iiify HTTP server in foreground mode.

The server exposes:
- POST /api/import for asynchronous METS imports
- /api/tasks for job status (polling, SSE streams and a websocket feed)
- /iiif/{id}/manifest and embedded sub-resources
- /iiif/collection/index, a paginated collection of all imports
- /iiif/image/{id}, a level 0 IIIF Image API

Runs until interrupted (Ctrl+C), completing in-flight imports before exit.`,
	RunE: runServer,
}

var (
	serverWorkersFlag int
	serverDBPathFlag  string
)

func init() {
	ServerCmd.Flags().IntVar(&serverWorkersFlag, "workers", 0, "Number of import workers (overrides config)")
	ServerCmd.Flags().StringVar(&serverDBPathFlag, "db-path", "", "Custom database path (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serverWorkersFlag > 0 {
		cfg.Import.Workers = serverWorkersFlag
	}
	if serverDBPathFlag != "" {
		cfg.DB.Path = serverDBPathFlag
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	printStartupBanner(cfg.Server.BaseURL, cfg.DB.Path, cfg.Import.Workers)

	srv := server.New(cfg, database, logger.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")
		cancel()

		select {
		case err := <-errChan:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
