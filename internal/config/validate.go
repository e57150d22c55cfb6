// ABOUTME: Configuration validation
// ABOUTME: Reports every invalid value and clamps the ones that have a safe default
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mariotaku/Sunshine/pkg/audio/encode"
)

// ErrClamped marks a value that was replaced with a safe one
var ErrClamped = errors.New("value clamped")

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks the config and returns all errors found.
// A non-positive failure limit is clamped to 1 and still reported.
func (c *Config) Validate() []error {
	var errs []error

	if _, err := encode.ParseCodec(c.Codec); err != nil {
		errs = append(errs, fmt.Errorf("codec: %w", err))
	}

	if err := c.EncodingRequest().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}

	if strings.TrimSpace(c.Source) == "" {
		errs = append(errs, fmt.Errorf("source must not be empty"))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}

	if c.MaxConsecutiveFailures < 1 {
		errs = append(errs, fmt.Errorf("max_consecutive_failures %d is below minimum 1: %w", c.MaxConsecutiveFailures, ErrClamped))
		c.MaxConsecutiveFailures = 1
	}

	return errs
}
