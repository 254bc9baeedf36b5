package outreach

import (
	"context"
	stderrors "errors"
	"time"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/metrics"
	"pipeline-crm/internal/models"
)

// BatchSubmitter is the slice of the provider client the dispatcher consumes.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, req *BatchRequest) (string, error)
}

// Dispatcher hands a list of opportunity ids to the outreach provider as one
// batch. It never loops or sleeps itself; pacing at the configured per-item
// delay is the provider's responsibility.
type Dispatcher struct {
	provider BatchSubmitter
	logger   logger.Logger
}

func NewDispatcher(provider BatchSubmitter, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "outreach-dispatcher"}),
	}
}

// Dispatch submits one batch and returns its handle.
//
// An empty id list is a no-op: no batch is created and (nil, nil) is
// returned. A submission failure is propagated without retry; the caller
// still advances to its results view with the import accounting intact.
func (d *Dispatcher) Dispatch(ctx context.Context, opportunityIDs []string, pipelineID string, delay time.Duration) (*models.OutreachBatch, error) {
	if len(opportunityIDs) == 0 {
		d.logger.Info("no opportunities to dispatch, skipping batch", map[string]interface{}{
			"pipelineId": pipelineID,
		})
		metrics.OutreachBatchesDispatched.WithLabelValues("empty").Inc()
		return nil, nil
	}

	delayMs := int(delay.Milliseconds())

	d.logger.Info("submitting outreach batch", map[string]interface{}{
		"opportunities": len(opportunityIDs),
		"pipelineId":    pipelineID,
		"delayMs":       delayMs,
	})

	batchID, err := d.provider.SubmitBatch(ctx, &BatchRequest{
		OpportunityIDs: opportunityIDs,
		PipelineID:     pipelineID,
		DelayMs:        delayMs,
	})
	if err != nil {
		metrics.OutreachBatchesDispatched.WithLabelValues("failed").Inc()
		d.logger.Error("batch submission failed", map[string]interface{}{
			"pipelineId": pipelineID,
			"error":      err.Error(),
		})
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewOutreachTimeoutError("submitBatch")
		}
		return nil, errors.NewOutreachDispatchFailedError(err)
	}

	metrics.OutreachBatchesDispatched.WithLabelValues("submitted").Inc()
	d.logger.Info("outreach batch submitted", map[string]interface{}{
		"batchId":       batchID,
		"opportunities": len(opportunityIDs),
	})

	return &models.OutreachBatch{
		BatchID:        batchID,
		OpportunityIDs: opportunityIDs,
		DelayMs:        delayMs,
		PipelineID:     pipelineID,
	}, nil
}
