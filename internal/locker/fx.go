package locker

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("locker",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
	Log   *zap.Logger
}

// New prefers redis so locks hold across scheduler and API processes.
func New(p Params) Locker {
	if p.Redis != nil {
		return NewRedisLocker(p.Redis)
	}
	p.Log.Warn("redis not configured, transfer guard locks are process local")
	return NewMemoryLocker()
}
