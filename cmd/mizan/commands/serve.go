package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/mizan/internal/api"
	"github.com/wonny/mizan/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the REST API server.

Endpoints:
  GET  /                     - Service info
  GET  /health               - Health check
  POST /api/analyze          - {"company_input": "..."}
  POST /api/analyze/batch    - {"company_inputs": ["...", "..."]}

Example:
  go run ./cmd/mizan serve
  go run ./cmd/mizan serve --port 8080`,
	RunE: runServe,
}

var (
	servePort string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default: PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Mizan API Server ===")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	log := a.log
	stamp := a.orchestrator.Stamp()
	log.WithFields(map[string]interface{}{
		"port":        a.cfg.Port,
		"env":         a.cfg.Env,
		"policy_id":   stamp.PolicyID,
		"policy_hash": stamp.Hash,
	}).Info("Initializing API server")

	analyzeHandler := handlers.NewAnalyzeHandler(a.orchestrator, a.cfg.Pipeline.BatchConcurrency, log)
	router := api.NewRouter(analyzeHandler, log)
	server := api.New(a.cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/analyze")
	fmt.Println("  POST /api/analyze/batch")
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
