package llm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// Target is a resolved model call: which model, through which provider,
// with whose key.
type Target struct {
	Model    string
	Provider string
	APIKey   string
	Personal bool
}

type RegistryConfig struct {
	// PlatformKeys maps provider -> the service's own key.
	PlatformKeys map[string]string
	Clients      map[string]Client
	// Tiers lists models from most to least expensive.
	Tiers     []string
	RateLimit float64
	RateBurst int
}

// Registry resolves models to clients and keys and rate limits calls
// made with the platform keys.
type Registry struct {
	keys    map[string]string
	clients map[string]Client
	tiers   []string
	limiter *rate.Limiter
}

func NewRegistry(cfg RegistryConfig) *Registry {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		keys:    cfg.PlatformKeys,
		clients: cfg.Clients,
		tiers:   cfg.Tiers,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// HasPersonalKey reports whether personal holds a key for model's
// provider.
func HasPersonalKey(model string, personal map[string]string) bool {
	p := ProviderFor(model)
	return p != "" && strings.TrimSpace(personal[p]) != ""
}

// Resolve picks the client and key for model. A personal key for the
// provider wins over the platform key.
func (r *Registry) Resolve(model string, personal map[string]string) (Target, error) {
	provider := ProviderFor(model)
	if provider == "" {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	if _, ok := r.clients[provider]; !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	if key := strings.TrimSpace(personal[provider]); key != "" {
		return Target{Model: model, Provider: provider, APIKey: key, Personal: true}, nil
	}
	if key := strings.TrimSpace(r.keys[provider]); key != "" {
		return Target{Model: model, Provider: provider, APIKey: key}, nil
	}
	return Target{}, fmt.Errorf("%w: %s", ErrNoAPIKey, provider)
}

// Chain is the selected model followed by up to maxRetries strictly
// cheaper tiers. A model outside the tier list has no cheaper tier.
func (r *Registry) Chain(selected string, maxRetries int) []string {
	chain := []string{selected}
	idx := -1
	for i, m := range r.tiers {
		if m == selected {
			idx = i
			break
		}
	}
	if idx < 0 {
		return chain
	}
	for _, m := range r.tiers[idx+1:] {
		if len(chain) > maxRetries {
			break
		}
		chain = append(chain, m)
	}
	return chain
}

// Generate performs one call for t. Platform-key calls wait on the
// shared limiter first.
func (r *Registry) Generate(ctx context.Context, t Target, req Request) (string, error) {
	if !t.Personal {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	req.Model = t.Model
	req.APIKey = t.APIKey
	return r.clients[t.Provider].Generate(ctx, req)
}
