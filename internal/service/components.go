// internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
	"github.com/browserpilot/browserpilot/internal/llmclient"
	"github.com/browserpilot/browserpilot/internal/session"
)

// Components holds the initialized collaborators of one interactive session.
// Build assembles them in dependency order; Shutdown releases them again.
// Centralizing the lifecycle here keeps the command layer from ever tearing
// down half a session.
type Components struct {
	LLM     llmclient.Client
	Browser BrowserSession
	Loop    *session.Loop
	// Enabled is the action catalog minus the configured exclusions, in
	// registration order.
	Enabled []schemas.ActionDescriptor

	log *zap.Logger
}

// Shutdown releases every held resource. Safe on a partially built value;
// missing components are skipped.
func (c *Components) Shutdown() {
	log := c.log
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("Beginning session component shutdown.")

	if c.Browser != nil {
		if err := c.Browser.Close(); err != nil {
			log.Warn("Browser session close reported an error.", zap.Error(err))
		} else {
			log.Debug("Browser session closed.")
		}
	}

	log.Info("Session components shut down.")
}
