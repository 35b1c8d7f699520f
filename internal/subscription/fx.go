package subscription

import (
	"github.com/railzwaylabs/paycore/internal/subscription/repository"
	"github.com/railzwaylabs/paycore/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
