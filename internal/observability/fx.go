package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewTracerProvider),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
