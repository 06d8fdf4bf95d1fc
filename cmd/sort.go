package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/embedding"
	"github.com/kozaktomas/face-sorter/internal/sorter"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Sort a directory of photos against a target face",
	Long: `Sort a directory of photos into matched and not_matched buckets
based on whether they show the person from the target photo.
Results are written to a fresh run directory under the runs root.`,
	RunE: runSort,
}

func init() {
	rootCmd.AddCommand(sortCmd)

	sortCmd.Flags().String("target", "", "Path to the target face photo (required)")
	sortCmd.Flags().String("input", "", "Directory with candidate images (required)")
	sortCmd.Flags().String("output", "", "Directory for run results (default: configured runs root)")
	sortCmd.Flags().String("mode", "", "Matching mode: hybrid or similarity (default from config)")
	sortCmd.Flags().String("detector", "", "Face detector backend (default from config)")
	sortCmd.Flags().Float64("threshold", 0, "Cosine distance threshold (default from config)")
	sortCmd.MarkFlagRequired("target")
	sortCmd.MarkFlagRequired("input")
}

// stageRun copies the target photo and every supported image from inputDir
// into a fresh run directory.
func stageRun(ws *workspace.Manager, targetPath, inputDir string) (*workspace.Run, error) {
	run, err := ws.CreateRun()
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	target, err := os.Open(targetPath)
	if err != nil {
		return nil, fmt.Errorf("opening target photo: %w", err)
	}
	defer target.Close()
	if err := run.StoreTarget(target); err != nil {
		return nil, fmt.Errorf("storing target photo: %w", err)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}
	stored := 0
	for _, entry := range entries {
		if entry.IsDir() || !workspace.HasValidExtension(entry.Name()) {
			continue
		}
		src, err := os.Open(filepath.Join(inputDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", entry.Name(), err)
		}
		_, err = run.StoreInput(entry.Name(), src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", entry.Name(), err)
		}
		stored++
	}
	if stored == 0 {
		return nil, errors.New("no supported images found in the input directory")
	}
	return run, nil
}

func runSort(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Embedding.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}

	runsRoot := mustGetString(cmd, "output")
	if runsRoot == "" {
		runsRoot = cfg.Paths.RunsDir
	}
	ws, err := workspace.NewManager(runsRoot)
	if err != nil {
		return fmt.Errorf("preparing runs directory: %w", err)
	}

	cls, err := classifier.Load(cfg.Paths.ModelsDir)
	if err != nil {
		return fmt.Errorf("loading classifier from %s: %w", cfg.Paths.ModelsDir, err)
	}

	run, err := stageRun(ws, mustGetString(cmd, "target"), mustGetString(cmd, "input"))
	if err != nil {
		return err
	}

	images, err := run.ListInputImages()
	if err != nil {
		return fmt.Errorf("listing input images: %w", err)
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Sorting photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	opts := sorter.Options{
		Mode:                mustGetString(cmd, "mode"),
		Detector:            mustGetString(cmd, "detector"),
		SimilarityThreshold: mustGetFloat64(cmd, "threshold"),
		OnProgress: func(info sorter.ProgressInfo) {
			bar.Add(1)
		},
	}
	if opts.Mode == "" {
		opts.Mode = cfg.Sort.Mode
	}
	if opts.Detector == "" {
		opts.Detector = cfg.Sort.Detector
	}
	// --threshold 0 is a valid setting; fall back to config only when the
	// flag was not given at all.
	if !cmd.Flags().Changed("threshold") {
		opts.SimilarityThreshold = cfg.Sort.SimilarityThreshold
	}

	detector := embedding.NewClient(cfg.Embedding.URL)
	result, err := sorter.New(detector, cls).Sort(context.Background(), run, opts)
	if err != nil {
		return fmt.Errorf("sorting run %s: %w", run.ID, err)
	}

	for _, bucket := range []workspace.Bucket{workspace.BucketMatched, workspace.BucketNotMatched} {
		if _, err := run.Archive(bucket); err != nil {
			return fmt.Errorf("archiving %s: %w", bucket, err)
		}
	}

	fmt.Println()
	fmt.Printf("Run %s finished\n", run.ID)
	fmt.Printf("  Target identity: %s (score %.3f)\n", result.TargetLabel, result.TargetScore)
	fmt.Printf("  Scanned:     %d\n", result.TotalScanned)
	fmt.Printf("  Matched:     %d\n", result.MatchedCount)
	fmt.Printf("  Not matched: %d\n", result.NotMatchedCount)
	if len(result.Failures) > 0 {
		fmt.Printf("  Failed (routed to not_matched): %d\n", len(result.Failures))
		for _, failure := range result.Failures {
			fmt.Printf("    %s: %v\n", failure.Name, failure.Err)
		}
	}
	fmt.Printf("  Results: %s\n", run.Dir())
	return nil
}
