package main

import (
	"github.com/railzwaylabs/paycore/internal/app"
	"github.com/railzwaylabs/paycore/internal/scheduler"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		scheduler.Module, // no server module
	).Run()
}
