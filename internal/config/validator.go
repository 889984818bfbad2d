// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateRunner(cfg, errs)
	v.validateEvents(cfg, errs)
	v.validateWatch(cfg, errs)
	v.validateLogging(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs.Add("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		errs.Add("server.tls_cert", "tls_cert and tls_key must be set together")
	}
}

func (v *Validator) validateRunner(cfg *Config, errs *ValidationError) {
	if cfg.Runner.StopTimeout != "" {
		d, err := time.ParseDuration(cfg.Runner.StopTimeout)
		if err != nil {
			errs.Add("runner.stop_timeout", fmt.Sprintf("invalid duration %q", cfg.Runner.StopTimeout))
		} else if d < 0 {
			errs.Add("runner.stop_timeout", "must not be negative")
		}
	}
}

func (v *Validator) validateEvents(cfg *Config, errs *ValidationError) {
	if cfg.Events.History.MaxEvents < 0 {
		errs.Add("events.history.max_events", "must not be negative")
	}
	if cfg.Events.History.MaxAge != "" {
		if _, err := time.ParseDuration(cfg.Events.History.MaxAge); err != nil {
			errs.Add("events.history.max_age", fmt.Sprintf("invalid duration %q", cfg.Events.History.MaxAge))
		}
	}
}

func (v *Validator) validateWatch(cfg *Config, errs *ValidationError) {
	if cfg.Watch.Debounce != "" {
		if _, err := time.ParseDuration(cfg.Watch.Debounce); err != nil {
			errs.Add("watch.debounce", fmt.Sprintf("invalid duration %q", cfg.Watch.Debounce))
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs.Add("logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level))
	}
}
