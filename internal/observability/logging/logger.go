// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
	Output     io.Writer
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithTenant returns a logger with tenant context.
func WithTenant(tenantId string) zerolog.Logger {
	return log.With().
		Str("tenantId", tenantId).
		Logger()
}

// WithConversation returns a logger with tenant and conversation context.
func WithConversation(tenantId, conversationId string) zerolog.Logger {
	return log.With().
		Str("tenantId", tenantId).
		Str("conversationId", conversationId).
		Logger()
}

// WithTask returns a logger with deferred task context.
func WithTask(tenantId, conversationId, taskId, kind string) zerolog.Logger {
	return log.With().
		Str("tenantId", tenantId).
		Str("conversationId", conversationId).
		Str("taskId", taskId).
		Str("taskKind", kind).
		Logger()
}
