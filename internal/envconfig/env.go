package envconfig

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Parse loads configuration from environment variables into target.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
