package billingidentity

import (
	"github.com/railzwaylabs/paycore/internal/billingidentity/repository"
	"github.com/railzwaylabs/paycore/internal/billingidentity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingidentity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
