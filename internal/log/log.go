// Package log configures the process-wide structured logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	charmlog "charm.land/log/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the on-disk log. Conversations produce chatty debug
// output, so the file is capped and old archives are pruned.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 14
)

// Setup routes the default slog logger through a rotating file writer at
// path. An empty path logs to stderr instead. Debug lowers the level to
// debug and reports call sites.
func Setup(path string, debug bool) error {
	var w io.Writer = os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	}

	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		ReportCaller:    debug,
	})
	slog.SetDefault(slog.New(logger))
	return nil
}
