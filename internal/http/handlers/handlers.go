// Package handlers implements the JSON API for the import wizard and
// outreach results.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/validation"
	"pipeline-crm/internal/importer/sheet"
	"pipeline-crm/internal/importer/validate"
	"pipeline-crm/internal/models"
	"pipeline-crm/internal/outreach"
	"pipeline-crm/internal/wizard"
)

// ResultReader is the slice of the outreach result store the API consumes.
type ResultReader interface {
	FetchResults(ctx context.Context, batchID string) ([]models.OutreachResult, error)
	Refresh(ctx context.Context, batchID string) ([]models.OutreachResult, error)
	ApplyStatusUpdate(ctx context.Context, batchID, opportunityID string, status models.ResponseStatus, at time.Time) error
	ExportCSV(w io.Writer, results []models.OutreachResult) error
}

type Handler struct {
	Sessions *wizard.Manager
	Results  ResultReader
	Stages   wizard.StageLister
	Logger   logger.Logger
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Template serves the downloadable upload template.
func (h *Handler) Template(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+sheet.TemplateFilename+`"`)
	if err := sheet.WriteTemplate(c.Writer); err != nil {
		h.Logger.Error("template generation failed", map[string]interface{}{"error": err.Error()})
	}
}

// ==========================
// Wizard Sessions
// ==========================

type openSessionRequest struct {
	PipelineID string `json:"pipelineId" binding:"required"`
}

// OpenSession creates a new wizard session at the Upload step.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pipelineId is required"})
		return
	}

	sess := h.Sessions.Open(req.PipelineID)
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GetSession returns the current session state.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Upload parses and validates an uploaded workbook and moves the session to
// Review. A file format error keeps the session at Upload and is surfaced
// with its specific message.
func (h *Handler) Upload(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, errors.NewFileUnreadableError(err))
		return
	}
	defer file.Close()

	rows, err := sheet.Read(file)
	if err != nil {
		h.Sessions.Machine().HandleUploadFailure(sess, err)
		h.writeError(c, err)
		return
	}

	records := validate.Records(rows)
	if err := h.Sessions.Machine().HandleUpload(c.Request.Context(), sess, records); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.Snapshot())
}

type selectStageRequest struct {
	StageID string `json:"stageId" binding:"required"`
}

// SelectStage picks the target stage at the Review step.
func (h *Handler) SelectStage(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req selectStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stageId is required"})
		return
	}

	if err := h.Sessions.Machine().SelectStage(sess, req.StageID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Start begins processing. Triggering it again while processing is already
// underway returns the current state unchanged.
func (h *Handler) Start(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.Sessions.Machine().Start(sess); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sess.Snapshot())
}

// Previous navigates one step back where permitted.
func (h *Handler) Previous(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.Sessions.Machine().Previous(sess); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// CloseSession dismisses the session, triggering batch cleanup when a batch
// exists.
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Sessions.Close(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ==========================
// Pipelines
// ==========================

// ListStages returns a pipeline's stages ordered by position.
func (h *Handler) ListStages(c *gin.Context) {
	stages, err := h.Stages.ListStages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// ==========================
// Outreach Results
// ==========================

// BatchResults returns per-item outcomes plus aggregate counts for a batch.
// `?refresh=true` bypasses the cache.
func (h *Handler) BatchResults(c *gin.Context) {
	batchID := c.Param("batchId")

	var results []models.OutreachResult
	var err error
	if c.Query("refresh") == "true" {
		results, err = h.Results.Refresh(c.Request.Context(), batchID)
	} else {
		results, err = h.Results.FetchResults(c.Request.Context(), batchID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"batchId": batchID,
		"results": results,
		"summary": outreach.Summarize(results),
	})
}

// ExportBatchResults streams the batch's results as a CSV download.
func (h *Handler) ExportBatchResults(c *gin.Context) {
	batchID := c.Param("batchId")

	results, err := h.Results.FetchResults(c.Request.Context(), batchID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+outreach.ExportFilename(batchID)+`"`)
	if err := h.Results.ExportCSV(c.Writer, results); err != nil {
		h.Logger.Error("csv export failed", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
	}
}

// ==========================
// Outreach Webhook
// ==========================

const webhookSchema = `{
	"type": "object",
	"required": ["batchId", "opportunityId", "status"],
	"properties": {
		"batchId": {"type": "string", "minLength": 1},
		"opportunityId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["success", "failed", "pending", "skipped"]},
		"timestamp": {"type": "string"}
	}
}`

// Webhook accepts provider delivery callbacks and applies the status update
// to the cached batch results.
func (h *Handler) Webhook(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	result, err := validation.ValidatePayload(payload, webhookSchema)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation error"})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"errors": result.GetErrorMessages()})
		return
	}

	batchID := payload["batchId"].(string)
	opportunityID := payload["opportunityId"].(string)
	status := models.ResponseStatus(payload["status"].(string))

	at := time.Now().UTC()
	if raw, ok := payload["timestamp"].(string); ok && raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			at = parsed
		}
	}

	if err := h.Results.ApplyStatusUpdate(c.Request.Context(), batchID, opportunityID, status, at); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// ==========================
// Error Mapping
// ==========================

func (h *Handler) writeError(c *gin.Context, err error) {
	stdErr := errors.AsStandardError(err)

	status := http.StatusInternalServerError
	switch {
	case stdErr.Code == errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case stdErr.Code == errors.ErrCodeInvalidTransition:
		status = http.StatusConflict
	case errors.IsFileFormatError(stdErr):
		status = http.StatusUnprocessableEntity
	case stdErr.Code == errors.ErrCodeResultFetchFailed,
		stdErr.Code == errors.ErrCodeOutreachDispatchFailed,
		stdErr.Code == errors.ErrCodeOutreachTimeout:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"error":     stdErr.UserMessage(),
		"code":      string(stdErr.Code),
		"retryable": stdErr.Retryable,
		"metadata":  stdErr.Metadata,
	})
}
