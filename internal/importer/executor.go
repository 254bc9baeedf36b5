// Package importer runs the bulk opportunity import: one contact and one
// opportunity per validated record, strictly in input order.
package importer

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/metrics"
	"pipeline-crm/internal/models"
)

// RecordStore is the slice of the record store the executor consumes.
type RecordStore interface {
	CreateContact(ctx context.Context, contact *models.Contact) (string, error)
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) (string, error)
}

// ProgressFunc receives a progress snapshot after each record.
type ProgressFunc func(models.ImportProgress)

type Executor struct {
	store        RecordStore
	storeTimeout time.Duration
	logger       logger.Logger
}

func NewExecutor(store RecordStore, storeTimeout time.Duration, log logger.Logger) *Executor {
	return &Executor{
		store:        store,
		storeTimeout: storeTimeout,
		logger:       log.WithFields(map[string]interface{}{"component": "importer"}),
	}
}

// Run imports validRecords sequentially and returns the final accounting.
//
// Records are processed one at a time in input order; no two creation calls
// are ever in flight at once. A failure on either creation step is isolated
// to that record: failed is incremented and the loop continues. A contact
// created without its opportunity is left in place and logged, not rolled
// back. skipped is the count of records rejected by upstream validation;
// they never reach this executor but are folded into the total.
func (e *Executor) Run(ctx context.Context, validRecords []models.ValidatedRecord, pipelineID, stageID string, skipped int, progress ProgressFunc) *models.ImportResults {
	start := time.Now()

	results := &models.ImportResults{
		Skipped:        skipped,
		Total:          len(validRecords) + skipped,
		OpportunityIDs: []string{},
	}

	e.logger.Info("starting import run", map[string]interface{}{
		"validRecords": len(validRecords),
		"skipped":      skipped,
		"pipelineId":   pipelineID,
		"stageId":      stageID,
	})

	for i, rec := range validRecords {
		status := "success"
		if err := e.importRecord(ctx, rec, pipelineID, stageID, results); err != nil {
			status = "failed"
			results.Failed++
			e.logger.Error("record import failed", map[string]interface{}{
				"row":    i + 1,
				"client": rec.ClientName,
				"error":  err.Error(),
			})
		} else {
			results.Successful++
		}

		metrics.ImportRecordsProcessed.WithLabelValues(status).Inc()

		if progress != nil {
			progress(models.ImportProgress{
				Current:       i + 1,
				Total:         len(validRecords),
				CurrentClient: rec.ClientName,
				CurrentPhone:  rec.Phone,
				Status:        status,
			})
		}
	}

	metrics.ImportRecordsProcessed.WithLabelValues("skipped").Add(float64(skipped))
	metrics.ImportDuration.Observe(time.Since(start).Seconds())

	e.logger.Info("import run finished", map[string]interface{}{
		"successful": results.Successful,
		"failed":     results.Failed,
		"skipped":    results.Skipped,
		"total":      results.Total,
		"duration":   time.Since(start).String(),
	})

	return results
}

func (e *Executor) importRecord(ctx context.Context, rec models.ValidatedRecord, pipelineID, stageID string, results *models.ImportResults) error {
	contactCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	contactID, err := e.store.CreateContact(contactCtx, &models.Contact{
		Name:              rec.ClientName,
		Phone:             rec.Phone,
		Email:             rec.Email,
		Source:            rec.Source,
		Notes:             rec.Notes,
		PreferredLanguage: rec.PreferredLanguage,
		PreferredDialect:  rec.PreferredDialect,
	})
	cancel()
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewStoreTimeoutError("createContact")
		}
		return errors.NewContactCreateFailedError(rec.ClientName, err)
	}

	oppCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	oppID, err := e.store.CreateOpportunity(oppCtx, &models.Opportunity{
		Name:       opportunityName(rec),
		ContactID:  contactID,
		PipelineID: pipelineID,
		StageID:    stageID,
		Source:     rec.Source,
	})
	cancel()
	if err != nil {
		// The contact stays; orphaning is the accepted trade-off here.
		e.logger.Warn("opportunity creation failed, contact left in place", map[string]interface{}{
			"contactId": contactID,
			"client":    rec.ClientName,
		})
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.NewStoreTimeoutError("createOpportunity")
		}
		return errors.NewOpportunityCreateFailedError(rec.ClientName, err)
	}

	results.OpportunityIDs = append(results.OpportunityIDs, oppID)
	return nil
}

func opportunityName(rec models.ValidatedRecord) string {
	if rec.Source != "" {
		return fmt.Sprintf("%s - %s", rec.ClientName, rec.Source)
	}
	return rec.ClientName
}
