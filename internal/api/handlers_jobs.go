package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/orchestrator"
)

type createJobRequest struct {
	Category    string   `json:"category"`
	Identifiers []string `json:"identifiers"`
	Recipients  []string `json:"recipients"`
	Description string   `json:"description"`
}

type triggerCategoryRequest struct {
	Category   string   `json:"category"`
	Recipients []string `json:"recipients"`
}

// CreateJob accepts an identifier list and starts a detection job for it.
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), orchestrator.CreateRequest{
		Category:    category,
		Identifiers: req.Identifiers,
		Recipients:  req.Recipients,
		Description: req.Description,
		Trigger:     orchestrator.TriggerManual,
	})
	if err != nil {
		h.respondError(c, err, "create job")
		return
	}

	c.JSON(http.StatusCreated, job)
}

// TriggerCategory starts a job over the category's full stored UPC roster,
// the same thing the scheduler does automatically.
func (h *Handler) TriggerCategory(c *gin.Context) {
	var req triggerCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.TriggerCategory(c.Request.Context(), category, req.Recipients, orchestrator.TriggerManual)
	if err != nil {
		h.respondError(c, err, "trigger category run")
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs returns jobs filtered by optional status and category.
func (h *Handler) ListJobs(c *gin.Context) {
	limit, offset := pagination(c)

	jobs, err := h.jobs.List(c.Request.Context(), c.Query("status"), c.Query("category"), limit, offset)
	if err != nil {
		h.respondError(c, err, "list jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob returns one job record.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// JobStatus returns the aggregate progress view for one job.
func (h *Handler) JobStatus(c *gin.Context) {
	summary, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get job status")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListJobBatches returns every batch of one job.
func (h *Handler) ListJobBatches(c *gin.Context) {
	batches, err := h.jobs.ListBatches(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "list job batches")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batches": batches,
		"count":   len(batches),
	})
}

// DeleteJob removes a terminal job and its batches, items, and alerts.
func (h *Handler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.jobs.Delete(c.Request.Context(), jobID); err != nil {
		h.respondError(c, err, "delete job")
		return
	}

	h.logger.Info("Job deleted", logger.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// GetBatch returns one batch record.
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.jobs.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get batch")
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ListBatchItems returns the per-identifier outcomes of one batch.
func (h *Handler) ListBatchItems(c *gin.Context) {
	batchID := c.Param("id")

	if _, err := h.jobs.GetBatch(c.Request.Context(), batchID); err != nil {
		h.respondError(c, err, "get batch")
		return
	}

	items, err := h.items.ListByBatch(c.Request.Context(), batchID)
	if err != nil {
		h.respondError(c, err, "list batch items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// StopBatch requests a cooperative stop; in-flight identifiers finish.
func (h *Handler) StopBatch(c *gin.Context) {
	batchID := c.Param("id")

	if err := h.jobs.StopBatch(c.Request.Context(), batchID); err != nil {
		h.respondError(c, err, "stop batch")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "stop requested",
		"batch_id": batchID,
	})
}
