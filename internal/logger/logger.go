// Package logger provides the zerolog logger used across the core.
package logger

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

// New returns a zerolog.Logger writing JSON to stdout with the component
// name attached. Error events that call .Stack() include a pkg/errors
// stack trace even when the error originated as a plain std error.
func New(component string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}

	lvl := zerolog.InfoLevel
	if os.Getenv("CHALKBOARD_DEBUG") == "true" || os.Getenv("DEBUG") == "true" {
		lvl = zerolog.DebugLevel
	}

	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("component", component).
		Timestamp().
		Logger()
}
