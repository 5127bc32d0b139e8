package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/logger"
	"github.com/ayusman/nayana/internal/server"
	"github.com/ayusman/nayana/internal/tray"
)

var (
	trackNoTray bool
	trackShow   bool
	trackFPS    int
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track gaze live from a camera and serve the results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrack(cmd.Context())
	},
}

func init() {
	trackCmd.Flags().BoolVar(&trackNoTray, "no-tray", false, "Do not show the system tray menu")
	trackCmd.Flags().BoolVar(&trackShow, "show", false, "Show the annotated video in a window (disables the tray)")
	trackCmd.Flags().IntVar(&trackFPS, "fps", capture.DefaultFPS, "Frames per second to process")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	det, err := newDetector()
	if err != nil {
		return err
	}

	cam := capture.NewCamera(cfg.CameraID)
	cam.SetFPS(trackFPS)

	a, err := app.New(app.Config{
		Store:              st,
		Camera:             cam,
		Detector:           det,
		Calibration:        cfg.Calibration,
		SceneChangePercent: cfg.SceneChangePercent,
		Annotate:           true,
	})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	defer a.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.New(server.Config{
		StaticDir:   cfg.StaticDir,
		Store:       st,
		Pipeline:    a,
		Detector:    det,
		Calibration: cfg.Calibration,
	})
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(ctx, cfg.ListenAddr)
		cancel()
	}()

	switch {
	case trackShow:
		showWindow(ctx, a)
	case !trackNoTray:
		runTray(ctx, cancel, a)
	default:
		<-ctx.Done()
	}

	cancel()
	return <-srvErr
}

// runTray blocks in the system tray until Quit or ctx is done.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(a.Recalibrate)
	t.OnDashboard(func() { openBrowser(dashboardURL()) })
	t.OnQuit(cancel)

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-ticker.C:
				if u, ok := a.Latest(); ok {
					t.SetStatus(string(u.Direction), u.Calibrated)
				}
			}
		}
	}()

	t.Run()
}

// showWindow displays annotated frames until q is pressed or ctx is done.
func showWindow(ctx context.Context, a *app.App) {
	window := gocv.NewWindow("nayana")
	defer window.Close()

	for ctx.Err() == nil {
		if jpeg := a.LatestJPEG(); len(jpeg) > 0 {
			if img, err := gocv.IMDecode(jpeg, gocv.IMReadColor); err == nil {
				window.IMShow(img)
				img.Close()
			}
		}
		if key := window.WaitKey(30); key == 'q' || key == 27 {
			return
		}
	}
}

func dashboardURL() string {
	addr := cfg.ListenAddr
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn(logger.Fields{"url": url, "error": err.Error()}, "failed to open browser")
	}
}
