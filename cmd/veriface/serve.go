package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/face/onnx"
	"github.com/veriface/platform/internal/orchestrator"
	"github.com/veriface/platform/internal/server"
	"github.com/veriface/platform/internal/store"
	"github.com/veriface/platform/internal/verify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the verification server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := onnx.Init(cfg.OnnxLibPath); err != nil {
		return err
	}
	defer onnx.Shutdown()

	detector, err := onnx.NewDetector(cfg.DetectorModelPath)
	if err != nil {
		return fmt.Errorf("load detector model: %w", err)
	}
	defer detector.Close()

	embedder, err := onnx.NewEmbedder(cfg.EmbedderModelPath, cfg.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("load embedder model: %w", err)
	}
	defer embedder.Close()

	verifier, cleanup, err := buildVerifier(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := orchestrator.Options{
		Analyzer:       face.NewAnalyzer(detector, rulesFromConfig(cfg)),
		Collector:      face.NewCollector(cfg.CollectWindow, cfg.QualityHighWater),
		Embedder:       face.NewProcessor(embedder),
		Verifier:       verifier,
		EmployeeID:     cfg.EmployeeID,
		VerifyTimeout:  cfg.VerifyTimeout,
		SessionTimeout: cfg.SessionTimeout,
	}
	if cfg.DedupEnabled {
		opts.Deduper = camera.NewDeduper(cfg.DedupMaxDistance)
	}
	orch := orchestrator.New(opts)
	orch.Start()
	defer orch.Stop()

	// Development soak mode: feed the pipeline from a directory of stills.
	if cfg.ReplayDir != "" {
		src := camera.NewReplaySource(cfg.ReplayDir, cfg.ReplayFPS, true)
		go func() {
			if err := orch.Run(ctx, src); err != nil && ctx.Err() == nil {
				slog.Error("replay source error", "error", err)
			}
		}()
	}

	srv := server.New(orch)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("veriface server starting",
			"http", cfg.HTTPAddr,
			"verify_mode", cfg.VerifyMode,
			"employee_id", cfg.EmployeeID)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// buildVerifier selects the verification backend per VERIFY_MODE.
func buildVerifier(ctx context.Context) (verify.Client, func(), error) {
	switch cfg.VerifyMode {
	case "local":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("VERIFY_MODE=local requires DATABASE_URL")
		}
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewEmployeeRepo(pool, cfg.EmbeddingDim)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return verify.NewLocalVerifier(repo, 0), pool.Close, nil
	default:
		client := verify.NewHTTPClient(verify.HTTPConfig{
			BaseURL: cfg.VerifyURL,
			Retries: cfg.VerifyRetries,
		})
		return client, func() {}, nil
	}
}
