package httpapi

import (
	"context"

	"github.com/kbukum/scribeflow/component"
	"github.com/kbukum/scribeflow/provider"
)

// ProviderComponent adapts any provider.Provider (the transcription,
// diarization, and LLM backends all satisfy it) into a component.Component
// so it can be registered with the app's health-check registry. These
// external backends have no start/stop lifecycle of their own — only an
// availability probe — so Start/Stop are no-ops.
type ProviderComponent struct {
	provider provider.Provider
}

// NewProviderComponent wraps p for registration with a component.Registry.
func NewProviderComponent(p provider.Provider) *ProviderComponent {
	return &ProviderComponent{provider: p}
}

func (p *ProviderComponent) Name() string { return p.provider.Name() }

func (p *ProviderComponent) Start(ctx context.Context) error { return nil }

func (p *ProviderComponent) Stop(ctx context.Context) error { return nil }

func (p *ProviderComponent) Health(ctx context.Context) component.Health {
	if p.provider.IsAvailable(ctx) {
		return component.Health{Name: p.provider.Name(), Status: component.StatusHealthy}
	}
	return component.Health{Name: p.provider.Name(), Status: component.StatusDegraded, Message: "provider reported unavailable"}
}
