package payment

import (
	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/payment/adapters"
	"github.com/simroam/simroam/internal/payment/adapters/paystack"
	"github.com/simroam/simroam/internal/payment/domain"
	"github.com/simroam/simroam/internal/payment/repository"
	"github.com/simroam/simroam/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
	fx.Provide(service.NewAttemptService),
	fx.Provide(service.NewConfirmationService),
)

// NewRegistry constructs every configured payment adapter. Providers without
// credentials are skipped; a provider with bad credentials fails startup.
func NewRegistry(cfg config.Config, m *metrics.Metrics) (*adapters.Registry, error) {
	var configured []domain.PaymentAdapter
	if cfg.Paystack.SecretKey != "" {
		adapter, err := paystack.New(cfg, m)
		if err != nil {
			return nil, err
		}
		configured = append(configured, adapter)
	}
	return adapters.NewRegistry(configured...), nil
}
