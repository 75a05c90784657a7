package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
)

type updateScheduleRequest struct {
	Category string `json:"category"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Timezone string `json:"timezone"`
	Enabled  bool   `json:"enabled"`
}

// SchedulerNextRun reports when the category would next fire. Disabled
// categories still report the would-be instant.
func (h *Handler) SchedulerNextRun(c *gin.Context) {
	category, ok := categoryQuery(c)
	if !ok {
		return
	}

	next, err := h.scheduler.NextRun(c.Request.Context(), category)
	if err != nil {
		h.respondError(c, err, "compute next run")
		return
	}

	c.JSON(http.StatusOK, next)
}

// SchedulerSettings returns the effective schedule for every category,
// defaults included for categories never configured.
func (h *Handler) SchedulerSettings(c *gin.Context) {
	settings, err := h.scheduler.Settings(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "list scheduler settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"settings": settings,
		"count":    len(settings),
	})
}

// UpdateSchedulerSetting replaces one category's schedule and rebuilds
// the cron entries immediately.
func (h *Handler) UpdateSchedulerSetting(c *gin.Context) {
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setting := &domain.SchedulerSetting{
		Category: category,
		Timezone: req.Timezone,
		Hour:     req.Hour,
		Minute:   req.Minute,
		Enabled:  req.Enabled,
	}
	if err := h.scheduler.UpdateSetting(c.Request.Context(), setting); err != nil {
		h.respondError(c, err, "update scheduler setting")
		return
	}

	h.logger.Info("Schedule updated via API",
		logger.String("category", string(category)),
		logger.Bool("enabled", req.Enabled),
	)
	c.JSON(http.StatusOK, setting)
}
