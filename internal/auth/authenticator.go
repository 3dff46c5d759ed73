package auth

import (
	"fleet-monitor/simulation/internal/config"
)

// Authenticator validates operator API keys for the control endpoints.
// Keys are static config for the simulation service; an empty key list
// means auth is disabled (local development).
type Authenticator struct {
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}
	return &Authenticator{staticKeys: staticKeys}
}

func (a *Authenticator) Open() bool {
	return len(a.staticKeys) == 0
}

func (a *Authenticator) Validate(apiKey string) bool {
	return a.staticKeys[apiKey]
}
