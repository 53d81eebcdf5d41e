// Package utils
package utils

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/amirphl/chart-drawings/internal/config"
)

var (
	logger  *logrus.Logger
	once    sync.Once
	options = config.Default().Log
	optMu   sync.Mutex
)

// ConfigureLogger sets the log file, level and rotation used by GetLogger.
// Calls after the first GetLogger only change the level.
func ConfigureLogger(cfg config.LogConfig) {
	optMu.Lock()
	defer optMu.Unlock()
	options = cfg
	if logger != nil {
		logger.SetLevel(parseLevel(cfg.Level))
	}
}

func GetLogger() *logrus.Logger {
	once.Do(func() {
		optMu.Lock()
		defer optMu.Unlock()
		cfg := options

		l := logrus.New()
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(parseLevel(cfg.Level))

		var writers []io.Writer
		if cfg.File != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
			})
		}
		if cfg.Stderr || len(writers) == 0 {
			writers = append(writers, os.Stderr)
		}
		l.SetOutput(io.MultiWriter(writers...))
		logger = l
	})
	return logger
}

func parseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
