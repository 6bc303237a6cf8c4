package catalog

import (
	"context"

	"github.com/fatflowers/creator-cashier/pkg/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(func(lc fx.Lifecycle, s *Service, cfg *config.Config) {
		lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
			return s.Seed(ctx, cfg.Offers)
		}})
	}),
)
