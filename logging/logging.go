package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is the process-wide logger; components derive their own with
// .With().Str("component", ...).
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)
