// Package logger provides the shared structured logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Fields is an alias so callers don't import logrus directly.
type Fields = logrus.Fields

// Options controls logger setup.
type Options struct {
	Level   string
	File    string
	NoColor bool
}

// Init configures the shared logger. Only the first call has an effect;
// packages that log before Init get a default stderr logger.
func Init(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = newLogger(opts)
	})
	return logger
}

// Get returns the shared logger, initialising it with defaults if needed.
func Get() *logrus.Logger {
	return Init(Options{Level: "info"})
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColor,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{os.Stderr}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(level >= logrus.DebugLevel)
	return l
}

func Debug(fields Fields, msg string) {
	Get().WithFields(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	Get().WithFields(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	Get().WithFields(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	Get().WithFields(fields).Error(msg)
}

// WithSession returns an entry tagged with the tracking session id.
func WithSession(id string) *logrus.Entry {
	return Get().WithField("session_id", id)
}
