// Package logging configures the process-wide zerolog logger with console
// output and optional rotated file output.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
type Options struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var initOnce sync.Once

// Init configures the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(opts Options) {
	initOnce.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil || opts.Level == "" {
			lvl = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(lvl)

		var writers []io.Writer
		console := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = time.Kitchen
		})
		writers = append(writers, console)

		if opts.FilePath != "" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    orDefault(opts.MaxSizeMB, 10),
				MaxBackups: orDefault(opts.MaxBackups, 3),
				MaxAge:     orDefault(opts.MaxAgeDays, 14),
				Compress:   true,
			})
		}

		log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
