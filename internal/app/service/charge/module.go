package charge

import (
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/tool"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config) (*tool.OrderRefGenerator, error) {
			return tool.NewOrderRefGenerator(cfg.NodeID)
		},
		NewProcessor,
	),
)
