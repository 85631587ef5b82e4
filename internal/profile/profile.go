// Package profile holds the runtime configuration for the sage server.
package profile

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address
	Addr string
	// Port is the binding port
	Port int
	// Data is the data directory holding the SQLite database
	Data string
	// DSN is the database path; defaults to <Data>/sage.db
	DSN string

	// Generation provider settings
	AIAPIKey  string // SAGE_OPENROUTER_API_KEY
	AIBaseURL string // SAGE_AI_BASE_URL (default: https://openrouter.ai/api/v1)
	AIModel   string // SAGE_AI_MODEL
}

// IsDev reports whether the server runs in development mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from SAGE_* environment variables on top of
// whatever is already set.
func (p *Profile) FromEnv() {
	if p.Mode == "" {
		p.Mode = getEnvOrDefault("SAGE_MODE", "dev")
	}
	if p.Addr == "" {
		p.Addr = getEnvOrDefault("SAGE_ADDR", "127.0.0.1")
	}
	if p.Port == 0 {
		if port, err := strconv.Atoi(getEnvOrDefault("SAGE_PORT", "8484")); err == nil {
			p.Port = port
		}
	}
	if p.Data == "" {
		p.Data = os.Getenv("SAGE_DATA")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("SAGE_DSN")
	}
	if p.AIAPIKey == "" {
		p.AIAPIKey = os.Getenv("SAGE_OPENROUTER_API_KEY")
	}
	if p.AIBaseURL == "" {
		p.AIBaseURL = getEnvOrDefault("SAGE_AI_BASE_URL", "https://openrouter.ai/api/v1")
	}
	if p.AIModel == "" {
		p.AIModel = os.Getenv("SAGE_AI_MODEL")
	}
}

// Validate fills derived defaults and checks the profile is usable.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		return errors.Errorf("invalid mode %q", p.Mode)
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.Data == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "resolve home dir")
		}
		p.Data = filepath.Join(home, ".sage")
	}
	if p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "sage.db")
	}
	return nil
}
