package gateway_log

import (
	"context"

	"github.com/fatflowers/creator-cashier/pkg/types"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(func(s *Service) types.GatewayCallObserver { return s }),
	fx.Invoke(func(lc fx.Lifecycle, s *Service) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			s.Wait()
			return nil
		}})
	}),
)
