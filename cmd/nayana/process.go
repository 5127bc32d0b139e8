package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/gaze"
)

var (
	processJSON    bool
	processNoStore bool
	processQuiet   bool
)

var processCmd = &cobra.Command{
	Use:   "process <video>",
	Short: "Track gaze over a video file and record it as a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), args[0])
	},
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "Print the summary as JSON")
	processCmd.Flags().BoolVar(&processNoStore, "no-store", false, "Do not record the session in the database")
	processCmd.Flags().BoolVar(&processQuiet, "quiet", false, "Hide the progress bar")
	rootCmd.AddCommand(processCmd)
}

func runProcess(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("video: %w", err)
	}

	det, err := newDetector()
	if err != nil {
		return err
	}
	defer det.Close()

	config := app.Config{
		Camera:      capture.NewVideoFile(path),
		Detector:    det,
		Calibration: cfg.Calibration,
	}
	if !processNoStore {
		if config.Store, err = openStore(); err != nil {
			return err
		}
	}

	a, err := app.New(config)
	if err != nil {
		return err
	}

	progress := func(int) {}
	if !processQuiet {
		total := -1
		if fc, ok := config.Camera.(capture.FrameCounter); ok {
			// The count is only known once the file is open; probe it separately.
			if err := config.Camera.Open(); err == nil {
				if n := fc.FrameCount(); n > 0 {
					total = n
				}
				config.Camera.Close()
			}
		}
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Tracking"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		progress = func(int) { bar.Add(1) }
	}

	summary, err := a.Process(ctx, progress)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if processJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(summary)
	return nil
}

func printSummary(s app.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Session:\t%s\n", s.SessionID)
	fmt.Fprintf(w, "Frames:\t%d\n", s.Frames)
	fmt.Fprintf(w, "Calibrated:\t%t\n", s.Calibrated)

	sides := make([]string, 0, len(s.Thresholds))
	for side := range s.Thresholds {
		sides = append(sides, side)
	}
	sort.Strings(sides)
	for _, side := range sides {
		fmt.Fprintf(w, "Threshold (%s):\t%d\n", side, s.Thresholds[side])
	}

	directions := make([]string, 0, len(s.Directions))
	for d := range s.Directions {
		directions = append(directions, string(d))
	}
	sort.Strings(directions)
	for _, d := range directions {
		fmt.Fprintf(w, "  %s\t%d\n", d, s.Directions[gaze.Direction(d)])
	}
}
