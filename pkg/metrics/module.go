package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const subsystem = "cashier"

var Module = fx.Options(
	fx.Provide(func() (*Business, error) { return NewBusiness(prometheus.DefaultRegisterer, subsystem) }),
)
