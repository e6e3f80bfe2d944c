package internal

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "live").Logger().
		Level(zerolog.WarnLevel)
	logger.Store(&l)
}

// Logger returns the logger used by the notification core.
func Logger() *zerolog.Logger {
	return logger.Load()
}

func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}
