package logging

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const devEnv = "DEV"

// Setup configures the global zerolog logger. DEV gets a human readable
// console writer, every other environment gets timestamped JSON.
func Setup(env, level string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(env, devEnv) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// StatePrefix shortens an opaque state token for log output.
func StatePrefix(state string) string {
	const keep = 8
	if len(state) <= keep {
		return state
	}
	return state[:keep] + "..."
}
