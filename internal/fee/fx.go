package fee

import (
	"github.com/railzwaylabs/paycore/internal/fee/repository"
	"github.com/railzwaylabs/paycore/internal/fee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
