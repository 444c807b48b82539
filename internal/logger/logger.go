// Package logger configures the process-wide zerolog logger and derives
// per-component scoped loggers for the plugin-facing logging capability.
// Grounded on the reference pack's internal/shared/logger/logger.go
// (SetupGlobalLogger: file-or-std writer via 6543/logfile-open, pretty
// console writer, caller-on-debug).
package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	logfile "github.com/6543/logfile-open"
	"github.com/rs/zerolog"
)

// Setup configures the global zerolog logger. logFile is "", "stderr" or
// "stdout" for a stream destination, or a filesystem path opened (and
// rotated) through 6543/logfile-open.
func Setup(ctx context.Context, level string, pretty, noColor bool, logFile string) (zerolog.Logger, error) {
	var w io.ReadWriteCloser
	switch logFile {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := logfile.OpenFileWithContext(ctx, logFile, 0o660)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("could not open log file %q: %w", logFile, err)
		}
		w = f
		noColor = true
	}

	log := zerolog.New(w).With().Timestamp().Logger()
	if pretty {
		log = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: noColor})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("unknown logging level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		log = log.With().Caller().Logger()
	}

	return log, nil
}
