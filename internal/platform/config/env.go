// Package config loads service settings from the process environment.
// Loyalty binaries declare their knobs with env struct tags under the
// SELO_ prefix.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates target from environment variables declared with env
// struct tags, applying envDefault values where a variable is unset.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
