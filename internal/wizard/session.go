// Package wizard owns the four-step bulk import flow: Upload, Review,
// Processing, Results. A Session is the single mutable state object of one
// flow; only this package writes to it.
package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/models"
)

// Step is the wizard position.
type Step int

const (
	StepUpload     Step = 1
	StepReview     Step = 2
	StepProcessing Step = 3
	StepResults    Step = 4
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepReview:
		return "review"
	case StepProcessing:
		return "processing"
	case StepResults:
		return "results"
	}
	return "unknown"
}

// Session is the state of one import wizard flow. All mutation goes through
// Machine methods under the session mutex; collaborators only ever receive
// copies via Snapshot.
type Session struct {
	mu sync.Mutex

	ID         string
	PipelineID string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	step              Step
	records           []models.ValidatedRecord
	fileError         *errors.StandardError
	stages            []models.Stage
	selectedStage     *models.Stage
	processingStarted bool
	closed            bool
	cleanupDone       bool

	importResults *models.ImportResults
	progress      *models.ImportProgress
	batch         *models.OutreachBatch
	outreachError string
}

// NewSession creates a fresh session at the Upload step.
func NewSession(pipelineID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		CreatedAt:  now,
		UpdatedAt:  now,
		step:       StepUpload,
	}
}

// Snapshot is a read-only copy of session state for API responses.
type Snapshot struct {
	ID                string                   `json:"id"`
	PipelineID        string                   `json:"pipelineId"`
	Step              int                      `json:"step"`
	StepName          string                   `json:"stepName"`
	Records           []models.ValidatedRecord `json:"records,omitempty"`
	ValidCount        int                      `json:"validCount"`
	InvalidCount      int                      `json:"invalidCount"`
	FileError         *errors.StandardError    `json:"fileError,omitempty"`
	Stages            []models.Stage           `json:"stages,omitempty"`
	SelectedStageID   string                   `json:"selectedStageId,omitempty"`
	ProcessingStarted bool                     `json:"processingStarted"`
	ImportResults     *models.ImportResults    `json:"importResults,omitempty"`
	Progress          *models.ImportProgress   `json:"progress,omitempty"`
	BatchID           string                   `json:"batchId,omitempty"`
	OutreachError     string                   `json:"outreachError,omitempty"`
	UpdatedAt         time.Time                `json:"updatedAt"`
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                s.ID,
		PipelineID:        s.PipelineID,
		Step:              int(s.step),
		StepName:          s.step.String(),
		FileError:         s.fileError,
		ProcessingStarted: s.processingStarted,
		ImportResults:     s.importResults,
		Progress:          s.progress,
		OutreachError:     s.outreachError,
		UpdatedAt:         s.UpdatedAt,
	}

	snap.Records = append(snap.Records, s.records...)
	snap.Stages = append(snap.Stages, s.stages...)
	for _, rec := range s.records {
		if rec.IsValid {
			snap.ValidCount++
		} else {
			snap.InvalidCount++
		}
	}
	if s.selectedStage != nil {
		snap.SelectedStageID = s.selectedStage.ID
	}
	if s.batch != nil {
		snap.BatchID = s.batch.BatchID
	}
	return snap
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// BatchID returns the outreach batch id, or "" if no batch was created.
func (s *Session) BatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		return ""
	}
	return s.batch.BatchID
}

// Closed reports whether the session has been dismissed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) validRecords() []models.ValidatedRecord {
	valid := make([]models.ValidatedRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.IsValid {
			valid = append(valid, rec)
		}
	}
	return valid
}

func (s *Session) invalidCount() int {
	count := 0
	for _, rec := range s.records {
		if !rec.IsValid {
			count++
		}
	}
	return count
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// reset returns the session to its initial empty state at step 1.
func (s *Session) reset() {
	s.step = StepUpload
	s.records = nil
	s.fileError = nil
	s.stages = nil
	s.selectedStage = nil
	s.processingStarted = false
	s.importResults = nil
	s.progress = nil
	s.batch = nil
	s.outreachError = ""
	s.touch()
}
