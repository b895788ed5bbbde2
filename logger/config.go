package logger

import (
	"fmt"
	"slices"
	"strings"
)

var (
	validLevels    = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	validEncodings = []string{"json", "console"}
)

// Config is the configuration for the logger.
type Config struct {
	// Level is one of: debug, info, warn, error, dpanic, panic, fatal.
	// default: "info"
	Level string `mapstructure:"level"`
	// Encoding is "json" or "console".
	// default: "json"
	Encoding string `mapstructure:"encoding"`
	// OutputPaths are the log output targets.
	// default: []string{"stdout"}
	OutputPaths []string `mapstructure:"output_paths"`
	// ErrorOutputPaths are the targets for zap's internal errors.
	// default: []string{"stderr"}
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// MergeDefaults returns a copy of c with zero fields filled from DefaultConfig.
func (c *Config) MergeDefaults() *Config {
	out := *c
	defaults := DefaultConfig()
	if out.Level == "" {
		out.Level = defaults.Level
	}
	if out.Encoding == "" {
		out.Encoding = defaults.Encoding
	}
	if len(out.OutputPaths) == 0 {
		out.OutputPaths = defaults.OutputPaths
	}
	if len(out.ErrorOutputPaths) == 0 {
		out.ErrorOutputPaths = defaults.ErrorOutputPaths
	}
	return &out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Level) {
		return ErrInvalidLevel(c.Level, fmt.Errorf("must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validEncodings, c.Encoding) {
		return ErrInvalidEncoding(c.Encoding)
	}
	return nil
}
