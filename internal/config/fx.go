package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Invoke(WatchFile),
)

// WatchFile logs edits to the config file. Gateways and schedules are built
// once at start, so a change only takes effect after a restart.
func WatchFile(cfg Config, log *zap.Logger) {
	if cfg.File == "" {
		return
	}
	v := viper.New()
	v.SetConfigFile(cfg.File)
	if err := v.ReadInConfig(); err != nil {
		log.Warn("config watch disabled", zap.String("file", cfg.File), zap.Error(err))
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Warn("config file changed, restart required to apply",
			zap.String("file", e.Name),
			zap.String("op", e.Op.String()),
		)
	})
	v.WatchConfig()
}
