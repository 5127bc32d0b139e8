package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/nayana/internal/config"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/logger"
	"github.com/ayusman/nayana/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is the loaded configuration shared by subcommands.
	cfg config.Config
	// db is opened for subcommands that need persistence.
	db *store.Store

	envFile  string
	dbPath   string
	logLevel string
	cameraID int
)

var rootCmd = &cobra.Command{
	Use:           "nayana",
	Short:         "Webcam gaze tracking",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("db") {
			cfg.DBPath = dbPath
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if flags.Changed("camera") {
			cfg.CameraID = cameraID
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "Optional .env file with NAYANA_* settings")
	pf.StringVar(&dbPath, "db", "", "SQLite database path (default ~/.nayana/nayana.db)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.IntVar(&cameraID, "camera", 0, "Camera device index")
}

// openStore opens the configured database, creating its directory.
func openStore() (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db = s
	return s, nil
}

// newDetector starts the dlib landmark service client.
func newDetector() (landmark.Detector, error) {
	d, err := landmark.NewDlibDetector(landmark.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("landmark detector unavailable: %w", err)
	}
	return d, nil
}
