// ABOUTME: HTTP run service command for drover.
// ABOUTME: Starts the local server that runs agents asynchronously over REST.

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/droverhq/drover/internal/api"
	"github.com/droverhq/drover/internal/constants"
	"github.com/droverhq/drover/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveLogFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the drover run service (HTTP API)",
	Long: `Start an HTTP server that runs agents asynchronously.

Runs started through the service keep going after the request returns;
clients poll their status, answer interactive prompts, and cancel them
over the same API. 'drover send' and 'drover cancel' are thin wrappers
around these endpoints.

API Endpoints:
  GET  /health                  Health check
  POST /api/runs                Start a run
  GET  /api/runs                List runs
  GET  /api/runs/{id}           Get run details
  POST /api/runs/{id}/input     Send input to a prompting run
  POST /api/runs/{id}/cancel    Cancel a run
  GET  /api/runs/{id}/output    Fetch the transcript

Only one serve process may own a data dir at a time.

Examples:
  drover serve                       # Listen on 127.0.0.1:7433
  drover serve --addr 0.0.0.0:8080   # Custom address
  drover serve --log-file -          # Log to stderr instead of a file`,
	GroupID: GroupServices,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config serve.addr)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Data directory (default: config serve.data_dir)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Log file path, or - for stderr (default: <data-dir>/serve.log)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr()
	}
	dataDir := serveDataDir
	if dataDir == "" {
		dataDir, err = cfg.DataDir()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// One serve process per data dir. The OS drops the flock if we die,
	// so a crashed server never wedges the next start.
	serveLock := flock.New(constants.ServeLockPath(dataDir))
	locked, err := serveLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring serve lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another drover serve already owns %s", dataDir)
	}
	defer serveLock.Unlock()

	logPath := serveLogFile
	if logPath == "" {
		logPath = constants.ServeLogPath(dataDir)
	}
	logOut := os.Stderr
	if logPath != "-" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.New(logOut, "", log.LstdFlags)

	st, err := store.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	server := api.NewServer(addr, dataDir, cfg, st, api.WithLogger(logger))

	fmt.Printf("drover run service listening on %s (data: %s)\n", addr, dataDir)
	logger.Printf("listening on %s", addr)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		if err := server.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
