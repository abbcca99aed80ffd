package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions selects level, format and an optional rotating log file.
type LoggerOptions struct {
	Level   string
	Pretty  bool
	LogFile string
}

// SetupLogger configures the global zerolog logger. Development gets the
// console writer; production gets JSON. When LogFile is set, output is also
// written to a size-rotated file.
func SetupLogger(opts LoggerOptions) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if opts.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotating)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
