package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowcase/glowcase/internal/config"
	"github.com/glowcase/glowcase/internal/embedding"
	"github.com/glowcase/glowcase/internal/gallery"
	"github.com/glowcase/glowcase/internal/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Glowcase web server.
The server restores the gallery index from the last snapshot when one
exists, otherwise it builds the index in the background while queries
receive a not-ready response.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// initIndex publishes the index from the snapshot when possible, otherwise
// kicks off a full build in the background so the server can start serving
// immediately.
func initIndex(builder *gallery.Builder) {
	restored, err := builder.Restore()
	if err != nil {
		logrus.WithError(err).Warn("snapshot restore failed")
	}
	if restored {
		return
	}

	logrus.Info("no usable snapshot, building gallery index in the background")
	go func() {
		if _, _, err := builder.Build(context.Background()); err != nil {
			logrus.WithError(err).Error("background gallery index build failed")
		}
	}()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if err := os.MkdirAll(cfg.Uploads.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	provider := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.MaxImageSize)
	store := gallery.NewStore()
	builder := gallery.NewBuilder(provider, store, cfg.Gallery.Dir, cfg.Gallery.MetadataPath, cfg.Gallery.SnapshotPath)
	builder.ExpectedDim = cfg.Embedding.Dim

	initIndex(builder)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, provider, store, builder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("error during shutdown")
		}
	}()

	fmt.Printf("Starting Glowcase on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
