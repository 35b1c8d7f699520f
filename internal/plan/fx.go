package plan

import (
	"github.com/railzwaylabs/paycore/internal/plan/repository"
	"github.com/railzwaylabs/paycore/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
