package providers

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/callroom/broker/config"
)

// Factory builds a provider from its config entry.
type Factory func(cfg config.ProviderConfig, logger *zap.Logger) (Provider, error)

// DefaultFactories returns the factories for every built-in provider.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		config.ProviderAgora:   NewAgora,
		config.ProviderZego:    NewZego,
		config.ProviderLiveKit: NewLiveKit,
	}
}

// Available is one entry of Registry.List.
type Available struct {
	Name       string   `json:"name"`
	Metadata   Metadata `json:"metadata"`
	Configured bool     `json:"configured"`
}

// Registry holds the configured providers. It is built once at startup and read-only
// afterwards, so it needs no locking.
type Registry struct {
	providers map[string]Provider
	order     []string
	logger    *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{providers: make(map[string]Provider), logger: logger}
}

// Build creates a registry from config entries in declared order. Disabled entries are
// skipped; entries that fail to build or are not configured are logged and skipped.
// No registered provider is only a warning.
func Build(entries []config.ProviderConfig, factories map[string]Factory, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		factory, ok := factories[entry.Name]
		if !ok {
			r.logger.Warn("unknown video provider in config", zap.String("provider", entry.Name))
			continue
		}
		p, err := factory(entry, r.logger.With(zap.String("provider", entry.Name)))
		if err != nil {
			r.logger.Warn("video provider init failed", zap.String("provider", entry.Name), zap.Error(err))
			continue
		}
		if err := r.Register(p); err != nil {
			r.logger.Warn("video provider not registered", zap.String("provider", entry.Name), zap.Error(err))
		}
	}
	if r.Len() == 0 {
		r.logger.Warn(ErrNoProviderAvailable.Error())
	}
	return r
}

// Register adds p. Unconfigured providers and duplicate names are rejected.
func (r *Registry) Register(p Provider) error {
	name := strings.ToLower(p.Name())
	if !p.IsConfigured() {
		return fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	r.logger.Info("video provider registered", zap.String("provider", name))
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("provider '%s': %w", name, ErrNotFound)
	}
	return p, nil
}

// Default returns the first registered provider in declared order.
func (r *Registry) Default() (Provider, bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.providers[r.order[0]], true
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.order) }

// Err returns ErrNoProviderAvailable when nothing was registered.
func (r *Registry) Err() error {
	if r.Len() == 0 {
		return ErrNoProviderAvailable
	}
	return nil
}

// List returns registered providers in declared order.
func (r *Registry) List() []Available {
	out := make([]Available, 0, len(r.order))
	for _, name := range r.order {
		p := r.providers[name]
		out = append(out, Available{
			Name:       name,
			Metadata:   p.Metadata(),
			Configured: p.IsConfigured(),
		})
	}
	return out
}
