package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facefinder/facefinder/internal/config"
	"github.com/facefinder/facefinder/internal/detector"
	"github.com/facefinder/facefinder/internal/engine"
	"github.com/facefinder/facefinder/internal/face"
)

var matchCmd = &cobra.Command{
	Use:   "match <reference-image> <photo-dir>",
	Short: "Find a person in a local photo directory",
	Long: `Match every face in the reference image against a directory of photos.
Photos where the person appears are reported and, when --output is set,
annotated copies with boxes and scores are written there.`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("mode", "individually", "Match mode: individually or together")
	matchCmd.Flags().Float64("threshold", 0, "Similarity threshold (defaults to SIM_THRESHOLD)")
	matchCmd.Flags().String("output", "", "Directory for annotated copies of matched photos")
	matchCmd.Flags().Int("max-seconds", 0, "Wall-clock budget for the run (defaults to MAX_SECONDS, 0 uses the configured value)")
	matchCmd.Flags().Bool("json", false, "Print the full summary as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	mode, err := engine.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}
	threshold := mustGetFloat64(cmd, "threshold")
	if threshold == 0 {
		threshold = cfg.Engine.Threshold
	}
	maxSeconds := mustGetInt(cmd, "max-seconds")
	if maxSeconds == 0 {
		maxSeconds = cfg.Engine.MaxSeconds
	}
	asJSON := mustGetBool(cmd, "json")

	det := detector.NewClient(cfg.Detector.URL)
	annotator := engine.NewAnnotator(
		cfg.Defaults.Annotation.Color,
		cfg.Defaults.Annotation.LineWidth,
		cfg.Defaults.Annotation.Padding,
	)
	runner := engine.NewRunner(det, annotator, cfg.Defaults.Images.Extensions)

	refData, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading reference image: %w", err)
	}
	detections, err := det.Detect(context.Background(), refData)
	if err != nil {
		return fmt.Errorf("detecting reference faces: %w", err)
	}
	if len(detections) == 0 {
		return fmt.Errorf("no faces found in reference image %s", args[0])
	}

	refs := face.NewReferenceSet()
	for _, d := range detections {
		refs.Add(d.Embedding)
	}
	fmt.Printf("Matching %d reference face(s) against %s (mode: %s, threshold: %.2f)\n",
		refs.Len(), args[1], mode, threshold)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Matching"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	req := engine.BatchRequest{
		Dir:        args[1],
		Refs:       refs,
		Mode:       mode,
		Threshold:  threshold,
		OutputDir:  mustGetString(cmd, "output"),
		OnProgress: func(percent int) { _ = bar.Set(percent) },
	}

	summary, err := runner.RunWithDeadline(context.Background(), req, time.Duration(maxSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	_ = bar.Finish()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if summary.Error != "" {
		fmt.Printf("Run aborted: %s\n", summary.Error)
		return nil
	}

	fmt.Printf("Scanned %d photo(s): %d matched, %d skipped, %d match(es) total\n",
		summary.TotalImages, summary.MatchedImages, summary.SkippedImages, summary.TotalMatches)
	for _, res := range summary.Results {
		line := fmt.Sprintf("  %s (%d match(es))", res.Filename, len(res.Matches))
		if res.SavedPath != "" {
			line += " -> " + res.SavedPath
		}
		fmt.Println(line)
	}
	return nil
}
