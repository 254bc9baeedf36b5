// Package models holds the domain types shared across the import and
// outreach pipeline.
package models

import "time"

// Header columns of the upload template. RawRecord keys use these names.
const (
	ColumnClientName        = "Client Name"
	ColumnPhoneNumber       = "Phone Number"
	ColumnEmail             = "Email"
	ColumnSource            = "Source"
	ColumnNotes             = "Notes"
	ColumnPreferredLanguage = "Preferred Language"
	ColumnPreferredDialect  = "Preferred Dialect"
)

// RequiredColumns are the header columns an upload must carry.
var RequiredColumns = []string{
	ColumnClientName,
	ColumnPhoneNumber,
	ColumnPreferredLanguage,
	ColumnPreferredDialect,
}

// RawRecord is one untyped row of uploaded input, keyed by header column
// name. Absent cells are empty strings, never missing keys.
type RawRecord map[string]string

// ValidatedRecord is the typed result of validating one RawRecord. Immutable
// after creation; lives only for the duration of a wizard session.
type ValidatedRecord struct {
	ClientName        string   `json:"clientName"`
	Phone             string   `json:"phone"`
	Email             string   `json:"email,omitempty"`
	Source            string   `json:"source,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	PreferredLanguage string   `json:"preferredLanguage"`
	PreferredDialect  string   `json:"preferredDialect"`
	IsValid           bool     `json:"isValid"`
	Errors            []string `json:"errors"`
}

// ImportResults is the final accounting of one import run.
// Total == Successful + Failed + Skipped always holds.
type ImportResults struct {
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	Skipped        int      `json:"skipped"`
	Total          int      `json:"total"`
	OpportunityIDs []string `json:"opportunityIds"`
}

// ImportProgress is the incremental progress snapshot reported after each
// record during an import run.
type ImportProgress struct {
	Current       int    `json:"current"`
	Total         int    `json:"total"`
	CurrentClient string `json:"currentClient"`
	CurrentPhone  string `json:"currentPhone"`
	Status        string `json:"status"` // creating | success | failed
}

// OutreachBatch is the handle returned by the outreach provider for one
// submitted batch. Exactly one batch may exist per wizard session.
type OutreachBatch struct {
	BatchID        string   `json:"batchId"`
	OpportunityIDs []string `json:"opportunityIds"`
	DelayMs        int      `json:"delayMs"`
	PipelineID     string   `json:"pipelineId"`
}

// ResponseStatus is the delivery state of one outreach item.
type ResponseStatus string

const (
	ResponseStatusSuccess ResponseStatus = "success"
	ResponseStatusFailed  ResponseStatus = "failed"
	ResponseStatusPending ResponseStatus = "pending"
	ResponseStatusSkipped ResponseStatus = "skipped"
)

func (s ResponseStatus) IsValid() bool {
	switch s {
	case ResponseStatusSuccess, ResponseStatusFailed, ResponseStatusPending, ResponseStatusSkipped:
		return true
	}
	return false
}

// OutreachResult is the per-item delivery outcome for one dispatched
// opportunity. Status starts pending and transitions to a terminal state as
// the provider reports outcomes.
type OutreachResult struct {
	ID              string         `json:"id"`
	OpportunityID   string         `json:"opportunity_id"`
	OpportunityName string         `json:"opportunity_name"`
	ClientName      string         `json:"client_name"`
	ClientPhone     string         `json:"client_phone"`
	ResponseStatus  ResponseStatus `json:"response_status"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Contact is a person record in the store.
type Contact struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email,omitempty"`
	Source            string    `json:"source,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	PreferredLanguage string    `json:"preferredLanguage"`
	PreferredDialect  string    `json:"preferredDialect"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Opportunity is a sales lead moving through pipeline stages.
type Opportunity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ContactID  string    `json:"contactId"`
	PipelineID string    `json:"pipelineId"`
	StageID    string    `json:"stageId"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Stage is a named step within a pipeline.
type Stage struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipelineId"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}

// Pipeline is an ordered collection of stages.
type Pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
