package installment

import (
	"github.com/railzwaylabs/paycore/internal/installment/repository"
	"github.com/railzwaylabs/paycore/internal/installment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("installment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
