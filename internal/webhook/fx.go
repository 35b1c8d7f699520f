package webhook

import (
	"github.com/railzwaylabs/paycore/internal/webhook/repository"
	"github.com/railzwaylabs/paycore/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
