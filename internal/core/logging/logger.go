// Package logging provides component-scoped loggers derived from the
// process-wide zerolog logger configured at startup.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component returns a logger tagged with the component name under the
// "cmp" key, so one invocation's log lines can be filtered per subsystem.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
