package fundingsource

import (
	"github.com/railzwaylabs/paycore/internal/fundingsource/repository"
	"github.com/railzwaylabs/paycore/internal/fundingsource/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fundingsource.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
