package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/notifier"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/report"
)

// ListReportAlerts returns the off-price findings recorded for a job so
// far. Live jobs return the partial view.
func (h *Handler) ListReportAlerts(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "get job")
		return
	}

	alerts, err := h.alerts.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "list report alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":     job.ID,
		"job_status": job.Status,
		"alerts":     alerts,
		"count":      len(alerts),
	})
}

// DownloadReportCSV renders the deterministic CSV and serves it as a file
// download. Only terminal jobs have a stable report.
func (h *Handler) DownloadReportCSV(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "get job")
		return
	}
	if !job.Status.Terminal() {
		h.respondError(c, fmt.Errorf("%w: job is %s", domain.ErrReportNotReady, job.Status), "download report")
		return
	}

	csvBytes, err := h.reports.Generate(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err, "generate report")
		return
	}

	filename := report.Filename(job)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", csvBytes)
}

// ResendReportEmail regenerates the CSV from recorded alerts and emails
// it again. Detection is never rerun.
func (h *Handler) ResendReportEmail(c *gin.Context) {
	jobID := c.Param("job_id")

	if err := h.jobs.ResendEmail(c.Request.Context(), jobID); err != nil {
		h.respondError(c, err, "resend report email")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "report email sent",
		"job_id":  jobID,
	})
}

type testEmailRequest struct {
	Recipient string `json:"recipient"`
}

// SendTestEmail verifies SMTP connectivity with a short message.
func (h *Handler) SendTestEmail(c *gin.Context) {
	var req testEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient is required"})
		return
	}

	msg := notifier.Message{
		To:      []string{req.Recipient},
		Subject: "price-monitor test email",
		Body:    "This is a test email from the price-monitor service. SMTP delivery is working.",
	}
	if err := h.mailer.Send(c.Request.Context(), msg); err != nil {
		h.respondError(c, err, "send test email")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "test email sent",
		"recipient": req.Recipient,
	})
}
