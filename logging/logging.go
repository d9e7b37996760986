// Package logging wraps zerolog as this repo's single logging surface,
// in the shape vocdoni-davinci-node/log/log.go uses: one guarded global
// logger, initialized once from a level string and an output target,
// rather than threading a *zerolog.Logger through every call site.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger zerolog.Logger
)

func init() {
	Init("info", os.Stderr)
}

// Init (re)configures the global logger at level (debug, info, warn,
// error) writing to w. Called once at CLI startup after flags are parsed
// (cmd/vote's --log-level flag), matching davinci-sequencer's
// log.level/log.output config fields.
func Init(level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
