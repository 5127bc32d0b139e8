// Package config loads application settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ayusman/nayana/internal/calibration"
)

// Config holds all runtime settings.
type Config struct {
	DBPath     string `validate:"required"`
	CameraID   int    `validate:"min=0"`
	ListenAddr string `validate:"required"`
	StaticDir  string
	LogLevel   string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile    string

	// SceneChangePercent is the share of changed pixels treated as a lighting
	// change. Zero disables automatic recalibration.
	SceneChangePercent float64 `validate:"min=0,max=100"`

	Calibration calibration.Options
}

// Default returns a Config with sensible default values.
func Default() Config {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".nayana")
	}

	return Config{
		DBPath:      filepath.Join(dataDir, "nayana.db"),
		CameraID:    0,
		ListenAddr:  ":8080",
		LogLevel:    "info",
		Calibration: calibration.DefaultOptions(),
	}
}

// Load reads an optional .env file and overlays NAYANA_* environment
// variables onto the defaults. A missing env file is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()

	setString(&cfg.DBPath, "NAYANA_DB_PATH")
	setString(&cfg.ListenAddr, "NAYANA_LISTEN_ADDR")
	setString(&cfg.StaticDir, "NAYANA_STATIC_DIR")
	setString(&cfg.LogLevel, "NAYANA_LOG_LEVEL")
	setString(&cfg.LogFile, "NAYANA_LOG_FILE")

	for _, f := range []func() error{
		func() error { return setInt(&cfg.CameraID, "NAYANA_CAMERA_ID") },
		func() error { return setInt(&cfg.Calibration.Frames, "NAYANA_CALIBRATION_FRAMES") },
		func() error { return setInt(&cfg.Calibration.SweepMin, "NAYANA_SWEEP_MIN") },
		func() error { return setInt(&cfg.Calibration.SweepMax, "NAYANA_SWEEP_MAX") },
		func() error { return setInt(&cfg.Calibration.SweepStep, "NAYANA_SWEEP_STEP") },
		func() error { return setFloat(&cfg.Calibration.TargetRatio, "NAYANA_TARGET_RATIO") },
		func() error { return setFloat(&cfg.SceneChangePercent, "NAYANA_SCENE_CHANGE_PERCENT") },
	} {
		if err := f(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks every setting. The validator descends into the
// calibration options as well.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}
