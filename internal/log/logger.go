package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the process logger. service names the binary ("api",
// "worker") so both processes can share one log stream. Production
// writes JSON lines; everything else gets the console writer at debug.
func New(environment, service string) zerolog.Logger {
	production := environment == "production"

	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if !production {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(out).With().
		Timestamp().
		Str("env", environment).
		Str("service", service).
		Logger()
}
