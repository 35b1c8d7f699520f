package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/railzwaylabs/paycore/internal/config"
)

var (
	ErrUnknownProvider = errors.New("gateway: unknown provider")
	ErrInvalidConfig   = errors.New("gateway: invalid_config")
)

// Factory builds one processor variant from the payment configuration.
type Factory interface {
	Provider() string
	New(cfg config.PaymentConfig) (Gateway, error)
}

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(f Factory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(f.Provider())] = f
}

func (r *Registry) Build(provider string, cfg config.PaymentConfig) (Gateway, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return f.New(cfg)
}

func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
