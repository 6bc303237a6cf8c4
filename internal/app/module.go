package app

import (
	"time"

	"github.com/fatflowers/creator-cashier/internal/app/api/server"
	"github.com/fatflowers/creator-cashier/internal/app/repository"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/gateway_log"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/internal/platform/db"
	"github.com/fatflowers/creator-cashier/internal/platform/lock"
	"github.com/fatflowers/creator-cashier/internal/platform/nmi"
	"github.com/fatflowers/creator-cashier/internal/platform/paypal"
	"github.com/fatflowers/creator-cashier/pkg/config"
	"github.com/fatflowers/creator-cashier/pkg/logger"
	"github.com/fatflowers/creator-cashier/pkg/metrics"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule wires everything except the HTTP server. cashierctl runs on it.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	repository.Module,
	lock.Module,
	gateway_log.Module,
	nmi.Module,
	paypal.Module,
	recon_event.Module,
	customer.Module,
	catalog.Module,
	ledger.Module,
	subscription.Module,
	checkout.Module,
	charge.Module,
	reconcile.Module,
)

var Module = fx.Options(
	CoreModule,
	server.Module,
)
