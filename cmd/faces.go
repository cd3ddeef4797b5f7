package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/facefinder/facefinder/internal/config"
	"github.com/facefinder/facefinder/internal/detector"
)

var facesCmd = &cobra.Command{
	Use:   "faces <image>",
	Short: "Detect faces in a local image",
	Long: `Detect faces in a single image file using the detection service and
print each face's index, bounding box, and detection confidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runFaces,
}

func init() {
	rootCmd.AddCommand(facesCmd)
}

func runFaces(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	det := detector.NewClient(cfg.Detector.URL)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	detections, err := det.Detect(context.Background(), data)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}

	if len(detections) == 0 {
		fmt.Println("No faces found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tBBOX\tCONFIDENCE")
	for i, d := range detections {
		fmt.Fprintf(w, "%d\t[%d,%d,%d,%d]\t%.3f\n", i, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.DetScore)
	}
	return w.Flush()
}
