package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/annotate"
	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/gaze"
	"github.com/ayusman/nayana/internal/server/api"
)

var analyzeOutput string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Estimate gaze in a single still image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(args[0])
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write an annotated copy of the image to this path")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") {
		return fmt.Errorf("unsupported image type %s", mtype.String())
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("decode image %s", path)
	}
	defer img.Close()

	det, err := newDetector()
	if err != nil {
		return err
	}
	defer det.Close()

	opts := cfg.Calibration
	opts.Frames = 1
	cal, err := calibration.New(opts)
	if err != nil {
		return err
	}

	result, err := gaze.NewTracker(det, cal, nil).Refresh(&img)
	if err != nil {
		return err
	}

	if analyzeOutput != "" {
		annotate.Draw(&img, result)
		annotate.Label(&img, result)
		if ok := gocv.IMWrite(analyzeOutput, img); !ok {
			return fmt.Errorf("write %s", analyzeOutput)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewAnalyzeResponse(result))
}
