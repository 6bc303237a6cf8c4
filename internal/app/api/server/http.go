package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/creator-cashier/docs"
	"github.com/fatflowers/creator-cashier/internal/app/api/handlers"
	mw "github.com/fatflowers/creator-cashier/internal/app/api/middleware"
	"github.com/fatflowers/creator-cashier/internal/app/service/catalog"
	"github.com/fatflowers/creator-cashier/internal/app/service/charge"
	"github.com/fatflowers/creator-cashier/internal/app/service/checkout"
	"github.com/fatflowers/creator-cashier/internal/app/service/customer"
	"github.com/fatflowers/creator-cashier/internal/app/service/ledger"
	"github.com/fatflowers/creator-cashier/internal/app/service/reconcile"
	"github.com/fatflowers/creator-cashier/internal/app/service/recon_event"
	"github.com/fatflowers/creator-cashier/internal/app/service/subscription"
	"github.com/fatflowers/creator-cashier/internal/platform/db"
	cfgpkg "github.com/fatflowers/creator-cashier/pkg/config"
	metrics "github.com/fatflowers/creator-cashier/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type routeParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Processor *charge.Processor
	Engine    *reconcile.Engine
	Checkout  *checkout.Service
	Ledger    *ledger.Service
	Events    *recon_event.Service
	Customers *customer.Service
	Catalog   *catalog.Service
	Subs      *subscription.Service
	DB        *gorm.DB `optional:"true"`
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, p routeParams) error {
	log := p.Log
	if p.Cfg.MetricsAddr != "" {
		prom, err := metrics.NewHTTP(prometheus.DefaultRegisterer, metrics.HTTPOptions{Subsystem: "cashier_http"})
		if err != nil {
			return err
		}
		prom.Mount(r, false)
		serveMetrics(p.Lifecycle, log, p.Cfg.MetricsAddr, prom)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	var ping handlers.Pinger
	if p.DB != nil {
		ping = db.Ping(p.DB)
	}
	handlers.RegisterHealthRoutes(pub, ping)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	handlers.RegisterPaymentRoutes(apiV1.Group("/payment"), p.Processor)
	handlers.RegisterCreditsRoutes(apiV1, p.Ledger)
	handlers.RegisterSubscriptionRoutes(apiV1, p.Subs)

	admin := apiV1.Group("/admin")
	handlers.RegisterAdminCreditsRoutes(admin, p.Ledger)
	handlers.RegisterAdminRoutes(admin, p.Engine, p.Checkout, p.Events, p.Customers, p.Catalog)
	return nil
}

// serveMetrics exposes the scrape endpoint on its own listener so it stays
// off the public API port.
func serveMetrics(lc fx.Lifecycle, log *zap.SugaredLogger, addr string, prom *metrics.HTTP) {
	mux := http.NewServeMux()
	mux.Handle(prom.Path(), prom.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", addr, "path", prom.Path())
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics listener stopped", "addr", addr, "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
