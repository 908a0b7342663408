// Package obslog configures the process-wide zerolog logger used by every
// subsystem in the building simulation.
package obslog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mkallander/elevatorsim/internal/config"
)

var once sync.Once
var log zerolog.Logger

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// configure builds the shared logger and stamps it with this process's
// simulation-run id (internal/config.RunID), so every entry point's log
// lines carry the same "run" field without each main.go adding it by
// hand.
func configure() {
	zerolog.TimeFieldFormat = timeFormat

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: timeFormat,
	}

	log = zerolog.New(output).With().Timestamp().Str("run", config.RunID()).Logger()
}

// GetConfigured returns the shared logger after pinning the global level.
// Only the first caller's level takes effect; later callers get the same
// logger regardless of the level they pass.
func GetConfigured(level zerolog.Level) *zerolog.Logger {
	once.Do(func() {
		configure()
		zerolog.SetGlobalLevel(level)
	})
	return &log
}

// Get returns the shared logger, configuring it at the default level on
// first use.
func Get() *zerolog.Logger {
	once.Do(configure)
	return &log
}

// For returns a child logger tagged with the given component name, so log
// lines from the scheduler, a floor subsystem and individual cars can be
// told apart in a single combined stream when running under one process.
func For(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}
