package adapters

import (
	"strings"

	"github.com/simroam/simroam/internal/payment/domain"
)

// Registry holds the configured payment adapters by provider name. Adapters
// are constructed once at composition time, so a misconfigured provider fails
// at startup rather than at call time.
type Registry struct {
	adapters map[string]domain.PaymentAdapter
}

func NewRegistry(adapters ...domain.PaymentAdapter) *Registry {
	registry := &Registry{adapters: map[string]domain.PaymentAdapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		registry.adapters[provider] = adapter
	}
	return registry
}

func (r *Registry) Adapter(provider string) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrUnknownProvider
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return adapter, nil
}

// MethodAllowed reports whether the provider supports the payment method.
func (r *Registry) MethodAllowed(provider, method string) bool {
	adapter, err := r.Adapter(provider)
	if err != nil {
		return false
	}
	method = strings.ToLower(strings.TrimSpace(method))
	for _, allowed := range adapter.Methods() {
		if allowed == method {
			return true
		}
	}
	return false
}
