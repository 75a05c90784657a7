package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Routes registers every endpoint. Health and metrics stay open; reads
// require a valid token and mutations additionally require can_trigger.
// With no JWT secret configured both middlewares pass everything through.
func (h *Handler) Routes(router *gin.Engine, jwtSecret string, metricsHandler http.Handler) {
	router.GET("/health", h.Health)
	router.GET("/health/ready", h.Ready)
	router.GET("/metrics", gin.WrapH(metricsHandler))

	authed := router.Group("", AuthMiddleware(jwtSecret))
	mutating := authed.Group("", RequireTrigger(jwtSecret))

	// Jobs
	mutating.POST("/jobs", h.CreateJob)
	mutating.POST("/jobs/category", h.TriggerCategory)
	authed.GET("/jobs", h.ListJobs)
	authed.GET("/jobs/:id", h.GetJob)
	authed.GET("/jobs/:id/status", h.JobStatus)
	authed.GET("/jobs/:id/batches", h.ListJobBatches)
	mutating.DELETE("/jobs/:id", h.DeleteJob)

	// Batches
	authed.GET("/batches/:id", h.GetBatch)
	authed.GET("/batches/:id/items", h.ListBatchItems)
	mutating.POST("/batches/:id/stop", h.StopBatch)

	// Reports
	authed.GET("/reports/:job_id", h.ListReportAlerts)
	authed.GET("/reports/:job_id/csv", h.DownloadReportCSV)
	mutating.POST("/reports/:job_id/email", h.ResendReportEmail)

	// Scheduler
	authed.GET("/scheduler/next-run", h.SchedulerNextRun)
	authed.GET("/scheduler/settings", h.SchedulerSettings)
	mutating.PUT("/scheduler/settings", h.UpdateSchedulerSetting)

	// Notifications
	mutating.POST("/notifications/test-email", h.SendTestEmail)

	// MAP prices
	authed.GET("/map-prices", h.ListMAPPrices)
	mutating.PUT("/map-prices", h.UpsertMAPPrices)
	mutating.DELETE("/map-prices/:identifier", h.DeleteMAPPrice)
	mutating.POST("/map-prices/import", h.ImportMAPPrices)

	// UPC rosters
	authed.GET("/upcs", h.ListUPCs)
	mutating.POST("/upcs", h.AddUPCs)
	mutating.DELETE("/upcs/:identifier", h.DeleteUPC)
	mutating.POST("/upcs/import", h.ImportUPCs)
}
