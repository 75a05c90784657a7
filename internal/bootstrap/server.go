package bootstrap

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/api"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

// SetupHTTPServer creates and configures the HTTP server.
func SetupHTTPServer(cfg *config.Config, db *sqlx.DB, svcs *Services, log logger.Logger) *api.Server {
	handler := api.NewHandler(api.Deps{
		Jobs:      svcs.Orchestrator,
		Reports:   svcs.Reports,
		Alerts:    svcs.Alerts,
		Items:     svcs.Items,
		Scheduler: svcs.Scheduler,
		Mailer:    svcs.Notifier,
		MAPPrices: svcs.MAPPrices,
		UPCs:      svcs.UPCs,
		Importer:  svcs.Importer,
		DB:        db,
		Logger:    log,
	})

	metricsHandler := promhttp.HandlerFor(svcs.Registry, promhttp.HandlerOpts{})
	return api.NewServer(cfg.Server, cfg.Debug, log, func(router *gin.Engine) {
		handler.Routes(router, cfg.Auth.JWTSecret, metricsHandler)
	})
}
