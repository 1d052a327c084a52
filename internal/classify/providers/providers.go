// Package providers selects the configured classifier backend.
package providers

import (
	"fmt"

	"github.com/ergcontrols/sahabot/internal/classify"
	"github.com/ergcontrols/sahabot/internal/classify/providers/anthropic"
	"github.com/ergcontrols/sahabot/internal/classify/providers/gemini"
	"github.com/ergcontrols/sahabot/internal/classify/providers/openai"
	"github.com/ergcontrols/sahabot/internal/config"
)

// New builds the backend named by cfg.Provider.
func New(cfg config.ClassifierConfig) (classify.Backend, error) {
	switch cfg.Provider {
	case "anthropic", "":
		return anthropic.New(cfg.APIKey), nil
	case "openai":
		return openai.New(cfg.APIKey, cfg.BaseURL), nil
	case "gemini":
		return gemini.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
