// @title           Paycore API
// @version         1.0
// @description     Payment orchestration API: identities, funding sources, transfers and installment subscriptions
// @BasePath  /api/v1
// @Schemes 	http https

package main

import (
	"github.com/railzwaylabs/paycore/internal/app"
	"github.com/railzwaylabs/paycore/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		server.Module,
	).Run()
}
