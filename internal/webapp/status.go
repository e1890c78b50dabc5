package webapp

import (
	"context"
	"fmt"
)

// HealthResult is the readiness payload served on /health.
type HealthResult struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentStatus `json:"components"`
}

// ComponentStatus represents the status of one component.
type ComponentStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Ready reports whether every component is ready.
func (h *HealthResult) Ready() bool {
	return h.Status == "ready"
}

// health checks every component the stub host depends on: the metadata
// store and the feature-flag manager.
func (a *App) health(ctx context.Context) *HealthResult {
	result := &HealthResult{
		Status:     "ready",
		Version:    a.version,
		Components: make(map[string]ComponentStatus),
	}

	metadata := ComponentStatus{Ready: true, Message: "connected"}
	if err := a.repo.CheckConnectivity(ctx); err != nil {
		metadata.Ready = false
		metadata.Message = err.Error()
		result.Status = "degraded"
	}
	result.Components["metadata"] = metadata

	result.Components["flags"] = ComponentStatus{
		Ready:   true,
		Message: fmt.Sprintf("%d flags", len(a.flags.Snapshot())),
	}

	result.Components["sessions"] = ComponentStatus{
		Ready:   true,
		Message: fmt.Sprintf("%d active", a.sessions.Active()),
	}

	return result
}
