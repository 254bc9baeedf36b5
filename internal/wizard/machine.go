package wizard

import (
	"context"
	"time"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/metrics"
	"pipeline-crm/internal/events"
	"pipeline-crm/internal/importer"
	"pipeline-crm/internal/models"
)

// StageLister supplies the stages of the target pipeline.
type StageLister interface {
	ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error)
}

// ImportRunner runs the sequential record import.
type ImportRunner interface {
	Run(ctx context.Context, validRecords []models.ValidatedRecord, pipelineID, stageID string, skipped int, progress importer.ProgressFunc) *models.ImportResults
}

// BatchDispatcher submits the post-import outreach batch.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, opportunityIDs []string, pipelineID string, delay time.Duration) (*models.OutreachBatch, error)
}

// BatchCleaner discards a batch's provider-side state.
type BatchCleaner interface {
	Cleanup(ctx context.Context, batchID string) error
}

// Machine drives sessions through the wizard steps. It is the only writer of
// session state; the importer and dispatcher communicate exclusively through
// return values and callbacks.
type Machine struct {
	stages     StageLister
	importer   ImportRunner
	dispatcher BatchDispatcher
	cleaner    BatchCleaner
	publisher  events.Publisher

	messageDelay time.Duration
	resultsGrace time.Duration

	logger logger.Logger
}

func NewMachine(stages StageLister, imp ImportRunner, dispatcher BatchDispatcher, cleaner BatchCleaner, publisher events.Publisher, messageDelay, resultsGrace time.Duration, log logger.Logger) *Machine {
	return &Machine{
		stages:       stages,
		importer:     imp,
		dispatcher:   dispatcher,
		cleaner:      cleaner,
		publisher:    publisher,
		messageDelay: messageDelay,
		resultsGrace: resultsGrace,
		logger:       log.WithFields(map[string]interface{}{"component": "wizard"}),
	}
}

// HandleUpload applies a successfully parsed and validated upload. The
// session moves from Upload to Review; the first pipeline stage is
// auto-selected when none is chosen yet.
func (m *Machine) HandleUpload(ctx context.Context, sess *Session, records []models.ValidatedRecord) error {
	stages, err := m.stages.ListStages(ctx, sess.PipelineID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return errors.NewSessionNotFoundError(sess.ID)
	}
	if sess.step != StepUpload {
		return errors.NewInvalidTransitionError("upload is only accepted at step 1")
	}

	sess.records = records
	sess.fileError = nil
	sess.stages = stages
	if sess.selectedStage == nil && len(stages) > 0 {
		sess.selectedStage = &stages[0]
	}

	m.transition(sess, StepReview)
	m.logger.Info("upload accepted", map[string]interface{}{
		"sessionId": sess.ID,
		"records":   len(records),
		"invalid":   sess.invalidCount(),
	})
	return nil
}

// HandleUploadFailure records a file format error. The session stays at
// Upload; there is no automatic retry.
func (m *Machine) HandleUploadFailure(sess *Session, uploadErr error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed || sess.step != StepUpload {
		return
	}
	sess.fileError = errors.AsStandardError(uploadErr)
	sess.touch()
	m.logger.Warn("upload rejected", map[string]interface{}{
		"sessionId": sess.ID,
		"code":      string(sess.fileError.Code),
	})
}

// SelectStage picks the target stage for the import. Only valid at Review.
func (m *Machine) SelectStage(sess *Session, stageID string) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return errors.NewSessionNotFoundError(sess.ID)
	}
	if sess.step != StepReview {
		return errors.NewInvalidTransitionError("stage selection is only available at step 2")
	}

	for i := range sess.stages {
		if sess.stages[i].ID == stageID {
			sess.selectedStage = &sess.stages[i]
			sess.touch()
			return nil
		}
	}
	return errors.NewInvalidTransitionError("unknown stage: " + stageID)
}

// Start begins processing. Guarded so that a second trigger while already
// processing is a no-op rather than a second import.
func (m *Machine) Start(sess *Session) error {
	sess.mu.Lock()

	if sess.closed {
		sess.mu.Unlock()
		return errors.NewSessionNotFoundError(sess.ID)
	}
	if sess.processingStarted {
		// idempotency guard
		sess.mu.Unlock()
		return nil
	}
	if sess.step != StepReview {
		sess.mu.Unlock()
		return errors.NewInvalidTransitionError("processing can only start from step 2")
	}
	if sess.selectedStage == nil {
		sess.mu.Unlock()
		return errors.NewInvalidTransitionError("no stage selected")
	}

	valid := sess.validRecords()
	if len(valid) == 0 {
		sess.mu.Unlock()
		return errors.NewInvalidTransitionError("no valid records to import")
	}

	skipped := sess.invalidCount()
	pipelineID := sess.PipelineID
	stageID := sess.selectedStage.ID
	sess.processingStarted = true
	m.transition(sess, StepProcessing)
	sess.mu.Unlock()

	go m.runProcessing(sess, valid, pipelineID, stageID, skipped)
	return nil
}

// runProcessing is the Processing step body: import, then dispatch, then
// advance to Results. It runs detached from the triggering request; a closed
// session stops every further transition and discards results.
func (m *Machine) runProcessing(sess *Session, valid []models.ValidatedRecord, pipelineID, stageID string, skipped int) {
	ctx := context.Background()

	results := m.importer.Run(ctx, valid, pipelineID, stageID, skipped, func(p models.ImportProgress) {
		sess.mu.Lock()
		if !sess.closed {
			snapshot := p
			sess.progress = &snapshot
			sess.touch()
		}
		sess.mu.Unlock()
	})

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		m.logger.Info("session closed mid-processing, discarding results", map[string]interface{}{"sessionId": sess.ID})
		return
	}
	sess.importResults = results
	sess.touch()
	sess.mu.Unlock()

	m.publish(ctx, events.KeyImportCompleted, events.ImportCompleted{
		SessionID:  sess.ID,
		PipelineID: pipelineID,
		Results:    results,
	})

	if len(results.OpportunityIDs) == 0 {
		// Nothing to dispatch. Wait out the grace period before showing
		// Results so the Processing step does not flash by.
		time.Sleep(m.resultsGrace)
		m.advanceToResults(sess)
		return
	}

	batch, err := m.dispatcher.Dispatch(ctx, results.OpportunityIDs, pipelineID, m.messageDelay)

	sess.mu.Lock()
	if sess.closed {
		// Close raced with the dispatch: the session reset before the batch
		// landed, so Close never saw it. The batch still exists on the
		// provider side and must be cleaned up here instead.
		var orphanID string
		if err == nil && batch != nil && !sess.cleanupDone {
			sess.cleanupDone = true
			orphanID = batch.BatchID
		}
		sess.mu.Unlock()
		if orphanID != "" {
			m.logger.Info("session closed mid-dispatch, cleaning up batch", map[string]interface{}{
				"sessionId": sess.ID,
				"batchId":   orphanID,
			})
			m.cleanupBatch(sess, orphanID)
		}
		return
	}
	if err != nil {
		// Outreach failure is not fatal to the wizard: import counts stand
		// and the session still reaches Results, just without a batch.
		sess.outreachError = errors.AsStandardError(err).UserMessage()
	} else {
		sess.batch = batch
	}
	sess.touch()
	sess.mu.Unlock()

	if err == nil {
		m.publish(ctx, events.KeyOutreachDispatched, events.OutreachDispatched{
			SessionID: sess.ID,
			BatchID:   batch.BatchID,
			Count:     len(batch.OpportunityIDs),
			DelayMs:   batch.DelayMs,
		})
	}

	m.advanceToResults(sess)
}

func (m *Machine) advanceToResults(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed || sess.step != StepProcessing {
		return
	}
	m.transition(sess, StepResults)
}

// Previous navigates one step back. Permitted only from Results to Review;
// at Processing it is a deliberate no-op since the import side effects are
// not reversible. Anywhere else it is an invalid transition.
func (m *Machine) Previous(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return errors.NewSessionNotFoundError(sess.ID)
	}

	switch sess.step {
	case StepResults:
		m.transition(sess, StepReview)
		return nil
	case StepProcessing:
		return nil
	default:
		return errors.NewInvalidTransitionError("previous is not available at step " + sess.step.String())
	}
}

// Close dismisses the session: no further automatic transitions, best-effort
// batch cleanup exactly once, and a reset to the initial empty state.
// Closing an already-closed session is a no-op.
func (m *Machine) Close(sess *Session) {
	sess.mu.Lock()

	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true

	var batchID string
	if sess.batch != nil && !sess.cleanupDone {
		sess.cleanupDone = true
		batchID = sess.batch.BatchID
	}
	finalStep := sess.step
	sess.reset()
	sess.mu.Unlock()

	if batchID != "" {
		m.cleanupBatch(sess, batchID)
	}

	m.publish(context.Background(), events.KeySessionClosed, events.SessionClosed{
		SessionID: sess.ID,
		FinalStep: int(finalStep),
	})

	m.logger.Info("session closed", map[string]interface{}{
		"sessionId": sess.ID,
		"finalStep": int(finalStep),
		"hadBatch":  batchID != "",
	})
}

// cleanupBatch discards the batch's provider-side state without blocking the
// caller. Callers hold the exactly-once guard (cleanupDone) before invoking.
func (m *Machine) cleanupBatch(sess *Session, batchID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.cleaner.Cleanup(ctx, batchID); err != nil {
			m.logger.Error("batch cleanup failed", map[string]interface{}{
				"sessionId": sess.ID,
				"batchId":   batchID,
				"error":     err.Error(),
			})
		}
	}()
}

func (m *Machine) transition(sess *Session, to Step) {
	metrics.WizardTransitions.WithLabelValues(sess.step.String(), to.String()).Inc()
	sess.step = to
	sess.touch()
}

func (m *Machine) publish(ctx context.Context, key string, data interface{}) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, key, data); err != nil {
		m.logger.Warn("event publish failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
