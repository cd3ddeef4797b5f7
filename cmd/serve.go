package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facefinder/facefinder/internal/archive"
	"github.com/facefinder/facefinder/internal/config"
	"github.com/facefinder/facefinder/internal/constants"
	"github.com/facefinder/facefinder/internal/detector"
	"github.com/facefinder/facefinder/internal/engine"
	"github.com/facefinder/facefinder/internal/jobs"
	"github.com/facefinder/facefinder/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the FaceFinder web server.
The server accepts a reference photo and a ZIP of candidate photos, runs
face matching against the detection service, and returns annotated results
either synchronously or as a pollable background job.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	det := detector.NewClient(cfg.Detector.URL)
	annotator := engine.NewAnnotator(
		cfg.Defaults.Annotation.Color,
		cfg.Defaults.Annotation.LineWidth,
		cfg.Defaults.Annotation.Padding,
	)
	runner := engine.NewRunner(det, annotator, cfg.Defaults.Images.Extensions)
	registry := jobs.NewRegistry()

	// Leftover dataset extractions from crashed runs pile up in the temp dir.
	archive.CleanupStale(os.TempDir(), "ffai_", constants.TempDirMaxAgeSeconds*time.Second)

	server := web.NewServer(cfg, det, runner, registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting FaceFinder on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
