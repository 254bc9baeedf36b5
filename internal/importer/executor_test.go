package importer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/models"
)

// ==========================
// Fake Record Store
// ==========================

type fakeStore struct {
	mu               sync.Mutex
	contacts         []models.Contact
	opportunities    []models.Opportunity
	failContactFor   map[string]bool
	failOppFor       map[string]bool
	stallContact     bool // block CreateContact until the context deadline
	inFlight         int
	sawConcurrentUse bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failContactFor: map[string]bool{},
		failOppFor:     map[string]bool{},
	}
}

func (f *fakeStore) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.sawConcurrentUse = true
	}
	f.mu.Unlock()
}

func (f *fakeStore) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeStore) CreateContact(ctx context.Context, contact *models.Contact) (string, error) {
	f.enter()
	defer f.leave()

	if f.stallContact {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.failContactFor[contact.Name] {
		return "", fmt.Errorf("store unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, *contact)
	return fmt.Sprintf("contact-%d", len(f.contacts)), nil
}

func (f *fakeStore) CreateOpportunity(ctx context.Context, opp *models.Opportunity) (string, error) {
	f.enter()
	defer f.leave()

	// test records carry no Source, so the opportunity name is the client name
	if f.failOppFor[opp.Name] {
		return "", fmt.Errorf("store unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.opportunities = append(f.opportunities, *opp)
	return fmt.Sprintf("opp-%d", len(f.opportunities)), nil
}

// ==========================
// Test Helpers
// ==========================

func validRecords(names ...string) []models.ValidatedRecord {
	recs := make([]models.ValidatedRecord, 0, len(names))
	for _, n := range names {
		recs = append(recs, models.ValidatedRecord{
			ClientName:        n,
			Phone:             "+201090190379",
			PreferredLanguage: "Arabic",
			PreferredDialect:  "Egyptian",
			IsValid:           true,
			Errors:            []string{},
		})
	}
	return recs
}

func newTestExecutor(t *testing.T, store RecordStore) *Executor {
	return NewExecutor(store, 5*time.Second, logger.NewTestLogger(t))
}

// ==========================
// Executor Tests
// ==========================

func TestRun_AllSuccessful(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, store)

	results := exec.Run(context.Background(), validRecords("A", "B", "C", "D", "E", "F", "G"), "pipe-1", "stage-1", 3, nil)

	assert.Equal(t, 7, results.Successful)
	assert.Equal(t, 0, results.Failed)
	assert.Equal(t, 3, results.Skipped)
	assert.Equal(t, 10, results.Total)
	assert.Len(t, results.OpportunityIDs, 7)
	assert.False(t, store.sawConcurrentUse, "creation calls must never overlap")
}

func TestRun_AccountingInvariant(t *testing.T) {
	store := newFakeStore()
	store.failContactFor["B"] = true
	store.failOppFor["D"] = true
	exec := newTestExecutor(t, store)

	results := exec.Run(context.Background(), validRecords("A", "B", "C", "D"), "pipe-1", "stage-1", 2, nil)

	assert.Equal(t, 2, results.Successful)
	assert.Equal(t, 2, results.Failed)
	assert.Equal(t, 2, results.Skipped)
	assert.Equal(t, results.Total, results.Successful+results.Failed+results.Skipped)
	assert.Len(t, results.OpportunityIDs, 2)
}

func TestRun_FailureIsolatedPerRecord(t *testing.T) {
	store := newFakeStore()
	store.failContactFor["B"] = true
	exec := newTestExecutor(t, store)

	results := exec.Run(context.Background(), validRecords("A", "B", "C"), "pipe-1", "stage-1", 0, nil)

	// B's failure does not abort C
	assert.Equal(t, 2, results.Successful)
	assert.Equal(t, 1, results.Failed)
	assert.Len(t, store.contacts, 2)
}

func TestRun_OrphanContactLeftInPlace(t *testing.T) {
	store := newFakeStore()
	store.failOppFor["B"] = true
	exec := newTestExecutor(t, store)

	results := exec.Run(context.Background(), validRecords("A", "B"), "pipe-1", "stage-1", 0, nil)

	assert.Equal(t, 1, results.Failed)
	// contact for B was created and is not rolled back
	assert.Len(t, store.contacts, 2)
	assert.Len(t, store.opportunities, 1)
}

func TestRun_ProgressReportedInOrder(t *testing.T) {
	store := newFakeStore()
	store.failContactFor["B"] = true
	exec := newTestExecutor(t, store)

	var snapshots []models.ImportProgress
	exec.Run(context.Background(), validRecords("A", "B", "C"), "pipe-1", "stage-1", 0, func(p models.ImportProgress) {
		snapshots = append(snapshots, p)
	})

	require.Len(t, snapshots, 3)
	assert.Equal(t, 1, snapshots[0].Current)
	assert.Equal(t, "A", snapshots[0].CurrentClient)
	assert.Equal(t, "success", snapshots[0].Status)
	assert.Equal(t, "failed", snapshots[1].Status)
	assert.Equal(t, 3, snapshots[2].Current)
	assert.Equal(t, 3, snapshots[2].Total)
}

func TestRun_EmptyInput(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, store)

	results := exec.Run(context.Background(), nil, "pipe-1", "stage-1", 0, nil)

	assert.Equal(t, 0, results.Total)
	assert.Empty(t, results.OpportunityIDs)
}

func TestImportRecord_StoreFailuresCarryErrorCodes(t *testing.T) {
	store := newFakeStore()
	store.failContactFor["A"] = true
	store.failOppFor["B"] = true
	exec := newTestExecutor(t, store)
	results := &models.ImportResults{OpportunityIDs: []string{}}

	err := exec.importRecord(context.Background(), validRecords("A")[0], "pipe-1", "stage-1", results)
	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	assert.Equal(t, errors.ErrCodeContactCreateFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	err = exec.importRecord(context.Background(), validRecords("B")[0], "pipe-1", "stage-1", results)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeOpportunityCreateFailed, errors.AsStandardError(err).Code)
}

func TestImportRecord_DeadlineSurfacesAsStoreTimeout(t *testing.T) {
	store := newFakeStore()
	store.stallContact = true
	exec := NewExecutor(store, 10*time.Millisecond, logger.NewTestLogger(t))
	results := &models.ImportResults{OpportunityIDs: []string{}}

	err := exec.importRecord(context.Background(), validRecords("A")[0], "pipe-1", "stage-1", results)

	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	assert.Equal(t, errors.ErrCodeStoreTimeout, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestRun_OpportunitiesLinkContactAndStage(t *testing.T) {
	store := newFakeStore()
	exec := newTestExecutor(t, store)

	exec.Run(context.Background(), validRecords("A"), "pipe-9", "stage-7", 0, nil)

	require.Len(t, store.opportunities, 1)
	assert.Equal(t, "contact-1", store.opportunities[0].ContactID)
	assert.Equal(t, "pipe-9", store.opportunities[0].PipelineID)
	assert.Equal(t, "stage-7", store.opportunities[0].StageID)
}
