package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"lepton-rental/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set every
// line is also appended to a size-limited file.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var raw io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.File).Msg("log file unavailable, writing to stdout only")
		} else {
			raw = io.MultiWriter(os.Stdout, fw)
		}
	}
	mu.Lock()
	output = raw
	mu.Unlock()

	var console io.Writer = raw
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: raw}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer is the raw destination of log lines, for loggers outside zerolog.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}
