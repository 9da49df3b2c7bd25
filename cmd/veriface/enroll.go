package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/face/onnx"
	"github.com/veriface/platform/internal/store"
)

// duplicateWarnSimilarity flags a new enrollment suspiciously close to an
// existing one, usually the same person enrolled under two ids.
const duplicateWarnSimilarity = 0.9

var enrollOpts struct {
	id     string
	name   string
	images string
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll an employee from reference stills",
	RunE:  runEnroll,
}

func init() {
	enrollCmd.Flags().StringVar(&enrollOpts.id, "id", "", "Employee id")
	enrollCmd.Flags().StringVar(&enrollOpts.name, "name", "", "Employee display name")
	enrollCmd.Flags().StringVarP(&enrollOpts.images, "images", "i", "", "Directory of reference stills")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
	_ = enrollCmd.MarkFlagRequired("images")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("enroll requires DATABASE_URL")
	}

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

	analyzer := face.NewAnalyzer(detector, rulesFromConfig(cfg))
	processor := face.NewProcessor(embedder)

	paths, err := listStills(enrollOpts.images)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images in %s", enrollOpts.images)
	}

	// Same selection rule as the live pipeline: best quality wins.
	var best *face.Candidate
	var seq uint64
	for _, path := range paths {
		img, err := imaging.Open(path)
		if err != nil {
			slog.Warn("skipping undecodable image", "path", path, "error", err)
			continue
		}
		seq++
		cand, ok := analyzer.Analyze(camera.Frame{Image: img, Timestamp: time.Now(), Seq: seq})
		if !ok {
			slog.Debug("no usable face", "path", path)
			continue
		}
		if best == nil || cand.Quality > best.Quality {
			cc := cand
			best = &cc
		}
	}
	if best == nil {
		return fmt.Errorf("no usable face found in %s", enrollOpts.images)
	}

	emb, err := processor.Process(ctx, best.Frame, best.Descriptor)
	if err != nil {
		return fmt.Errorf("embed reference face: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := store.NewEmployeeRepo(pool, cfg.EmbeddingDim)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	if near, sim, err := repo.Nearest(ctx, emb); err == nil && near.ID != enrollOpts.id && sim >= duplicateWarnSimilarity {
		slog.Warn("embedding is very close to another enrollment",
			"other_id", near.ID, "other_name", near.Name, "similarity", sim)
	}

	if err := repo.Enroll(ctx, store.Employee{
		ID:        enrollOpts.id,
		Name:      enrollOpts.name,
		Embedding: emb,
	}); err != nil {
		return err
	}

	slog.Info("employee enrolled",
		"id", enrollOpts.id,
		"name", enrollOpts.name,
		"stills", len(paths),
		"quality", best.Quality)
	return nil
}

func listStills(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read stills: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
