package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/embedding"
	"github.com/kozaktomas/face-sorter/internal/web"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Sorter web server.
The server accepts a target face photo plus a batch of candidate images,
sorts them into matched and not_matched buckets and serves the results
as zip archives and preview images.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8000, "Port to listen on")
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

// loadClassifier loads the identity classifier artifacts. Missing artifacts
// are not fatal for serving: sort requests fail with a configuration error
// while the rest of the API keeps working.
func loadClassifier(modelsDir string) *classifier.Classifier {
	cls, err := classifier.Load(modelsDir)
	if err != nil {
		if errors.Is(err, classifier.ErrModelMissing) {
			fmt.Printf("Warning: classifier artifacts not found in %s\n", modelsDir)
			fmt.Println("Sort requests will be rejected until the model files are in place")
			return nil
		}
		fmt.Printf("Warning: failed to load classifier: %v\n", err)
		return nil
	}
	fmt.Printf("Classifier loaded: %d identities, %d-dimensional embeddings\n", len(cls.Labels()), cls.Dim())
	return cls
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Embedding.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}

	ws, err := workspace.NewManager(cfg.Paths.RunsDir)
	if err != nil {
		return fmt.Errorf("preparing runs directory: %w", err)
	}

	detector := embedding.NewClient(cfg.Embedding.URL)
	cls := loadClassifier(cfg.Paths.ModelsDir)
	if cls != nil && cls.Dim() != cfg.Embedding.Dim {
		fmt.Printf("Warning: classifier expects %d-dimensional embeddings, EMBEDDING_DIM is %d\n",
			cls.Dim(), cfg.Embedding.Dim)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, ws, detector, cls)

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

	fmt.Printf("Starting Face Sorter on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
