package settings

import (
	"context"
	"sync"

	"github.com/spec-kit/handoff-service/internal/config"
	"github.com/spec-kit/handoff-service/internal/domain"
)

// Resolver supplies per-tenant provider configuration. The core only
// consumes the normalized HandoffConfiguration shape and never mutates it.
type Resolver interface {
	GetHandoffConfiguration(ctx context.Context, orgID, agentID string) (*domain.HandoffConfiguration, error)
}

// StaticResolver serves configurations from an in-memory table with an
// optional env-derived fallback. A missing entry resolves to nil, nil: "no
// handoff configured" is a supported state, not an error.
type StaticResolver struct {
	mu       sync.RWMutex
	byOrg    map[string]domain.HandoffConfiguration
	fallback *domain.HandoffConfiguration
}

// NewStaticResolver builds a resolver seeded with the env fallback.
func NewStaticResolver(provider config.ProviderConfig) *StaticResolver {
	r := &StaticResolver{byOrg: make(map[string]domain.HandoffConfiguration)}
	if provider.Type != "" {
		cfg := fromProviderConfig(provider)
		r.fallback = &cfg
	}
	return r
}

// Set registers a tenant configuration.
func (r *StaticResolver) Set(orgID string, cfg domain.HandoffConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrg[orgID] = cfg
}

// GetHandoffConfiguration resolves the tenant's configuration.
func (r *StaticResolver) GetHandoffConfiguration(ctx context.Context, orgID, agentID string) (*domain.HandoffConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cfg, ok := r.byOrg[orgID]; ok {
		copied := cfg
		return &copied, nil
	}
	if r.fallback != nil {
		copied := *r.fallback
		return &copied, nil
	}
	return nil, nil
}

func fromProviderConfig(provider config.ProviderConfig) domain.HandoffConfiguration {
	return domain.HandoffConfiguration{
		Type:                    domain.ProviderType(provider.Type),
		APIKey:                  provider.APIKey,
		APISecret:               provider.APISecret,
		AppID:                   provider.AppID,
		Subdomain:               provider.Subdomain,
		OrgID:                   provider.OrgID,
		ButtonID:                provider.ButtonID,
		DeploymentID:            provider.DeploymentID,
		ChatHostURL:             provider.ChatHostURL,
		SigningSecret:           provider.SigningSecret,
		AllowAnonymousHandoff:   provider.AllowAnonymousHandoff,
		SurveyLink:              provider.SurveyLink,
		EnableAvailabilityCheck: provider.EnableAvailabilityCheck,
	}
}
