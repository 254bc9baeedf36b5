package outreach

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-crm/internal/common/database"
	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/models"
)

// ==========================
// Fake Result Provider
// ==========================

type fakeProvider struct {
	results     map[string][]models.OutreachResult
	fetchCalls  int
	fetchErr    error
	deleteCalls []string
	deleteErr   error
}

func (f *fakeProvider) GetBatchResults(ctx context.Context, batchID string) ([]models.OutreachResult, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.results[batchID], nil
}

func (f *fakeProvider) DeleteBatch(ctx context.Context, batchID string) error {
	f.deleteCalls = append(f.deleteCalls, batchID)
	return f.deleteErr
}

// ==========================
// Test Helpers
// ==========================

func newTestResultStore(t *testing.T, provider *fakeProvider) (*ResultStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := &database.RedisClient{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	return NewResultStore(provider, redisClient, time.Hour, logger.NewTestLogger(t)), mr
}

func sampleResults() []models.OutreachResult {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return []models.OutreachResult{
		{ID: "r-1", OpportunityID: "opp-1", OpportunityName: "Amina Hassan", ClientName: "Amina Hassan", ClientPhone: "+201090190379", ResponseStatus: models.ResponseStatusSuccess, Timestamp: base},
		{ID: "r-2", OpportunityID: "opp-2", OpportunityName: "Omar Ali - Facebook", ClientName: "Omar Ali", ClientPhone: "+971501234567", ResponseStatus: models.ResponseStatusPending, Timestamp: base.Add(time.Minute)},
		{ID: "r-3", OpportunityID: "opp-3", OpportunityName: "Layla Saad", ClientName: "Layla Saad", ClientPhone: "+96170123456", ResponseStatus: models.ResponseStatusFailed, Timestamp: base.Add(2 * time.Minute)},
	}
}

// ==========================
// Fetch & Cache Tests
// ==========================

func TestFetchResults_CachesProviderResponse(t *testing.T) {
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": sampleResults()}}
	store, _ := newTestResultStore(t, provider)

	first, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, 1, provider.fetchCalls)

	// second read is served from cache
	second, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.fetchCalls)
}

func TestFetchResults_ProviderFailureIsRetryable(t *testing.T) {
	provider := &fakeProvider{fetchErr: fmt.Errorf("provider unavailable")}
	store, _ := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")

	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	assert.Equal(t, errors.ErrCodeResultFetchFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestRefresh_BypassesCache(t *testing.T) {
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": sampleResults()}}
	store, _ := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)

	_, err = store.Refresh(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.fetchCalls)
}

// ==========================
// Webhook Update Tests
// ==========================

func TestApplyStatusUpdate_TransitionsPendingItem(t *testing.T) {
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": sampleResults()}}
	store, _ := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)

	deliveredAt := time.Date(2026, 8, 1, 10, 5, 0, 0, time.UTC)
	err = store.ApplyStatusUpdate(context.Background(), "batch-1", "opp-2", models.ResponseStatusSuccess, deliveredAt)
	require.NoError(t, err)

	results, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResponseStatusSuccess, results[1].ResponseStatus)
	assert.Equal(t, deliveredAt, results[1].Timestamp)
	assert.Equal(t, 1, provider.fetchCalls, "update must be applied in cache, not refetched")
}

func TestApplyStatusUpdate_RejectsInvalidStatus(t *testing.T) {
	provider := &fakeProvider{}
	store, _ := newTestResultStore(t, provider)

	err := store.ApplyStatusUpdate(context.Background(), "batch-1", "opp-1", models.ResponseStatus("delivered"), time.Now())
	assert.Error(t, err)
}

func TestApplyStatusUpdate_UnknownOpportunity(t *testing.T) {
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": sampleResults()}}
	store, _ := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)

	err = store.ApplyStatusUpdate(context.Background(), "batch-1", "opp-99", models.ResponseStatusSuccess, time.Now())
	assert.Error(t, err)
}

func TestApplyStatusUpdate_ConcurrentCallbacksAllApplied(t *testing.T) {
	pending := make([]models.OutreachResult, 8)
	for i := range pending {
		pending[i] = models.OutreachResult{
			ID:             fmt.Sprintf("r-%d", i+1),
			OpportunityID:  fmt.Sprintf("opp-%d", i+1),
			ResponseStatus: models.ResponseStatusPending,
		}
	}
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": pending}}
	store, _ := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(oppID string) {
			defer wg.Done()
			assert.NoError(t, store.ApplyStatusUpdate(context.Background(), "batch-1", oppID, models.ResponseStatusSuccess, time.Now()))
		}(pending[i].OpportunityID)
	}
	wg.Wait()

	results, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 8, Summarize(results).Success, "no callback may be lost")
}

func TestApplyStatusUpdate_UncachedBatchIsDropped(t *testing.T) {
	provider := &fakeProvider{}
	store, _ := newTestResultStore(t, provider)

	err := store.ApplyStatusUpdate(context.Background(), "batch-unknown", "opp-1", models.ResponseStatusSuccess, time.Now())
	assert.NoError(t, err)
}

// ==========================
// Summary & CSV Export Tests
// ==========================

func TestSummarize_CountsEveryStatus(t *testing.T) {
	summary := Summarize(sampleResults())

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, summary.Total, summary.Success+summary.Failed+summary.Pending+summary.Skipped)
}

func TestExportCSV_HeaderAndRowOrder(t *testing.T) {
	provider := &fakeProvider{}
	store, _ := newTestResultStore(t, provider)

	var buf bytes.Buffer
	require.NoError(t, store.ExportCSV(&buf, sampleResults()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per result")

	assert.Equal(t, []string{"Status", "Opportunity Name", "Client Name", "Client Phone", "Timestamp"}, rows[0])
	assert.Equal(t, []string{"success", "Amina Hassan", "Amina Hassan", "+201090190379", "2026-08-01T10:00:00Z"}, rows[1])
	assert.Equal(t, "pending", rows[2][0])
	assert.Equal(t, "Omar Ali - Facebook", rows[2][1])
	assert.Equal(t, "failed", rows[3][0])
}

func TestExportCSV_EmptyResults(t *testing.T) {
	provider := &fakeProvider{}
	store, _ := newTestResultStore(t, provider)

	var buf bytes.Buffer
	require.NoError(t, store.ExportCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "outreach_results_batch-7.csv", ExportFilename("batch-7"))
}

// ==========================
// Cleanup Tests
// ==========================

func TestCleanup_DeletesProviderBatchAndCache(t *testing.T) {
	provider := &fakeProvider{results: map[string][]models.OutreachResult{"batch-1": sampleResults()}}
	store, mr := newTestResultStore(t, provider)

	_, err := store.FetchResults(context.Background(), "batch-1")
	require.NoError(t, err)
	require.True(t, mr.Exists(resultsKey("batch-1")))

	require.NoError(t, store.Cleanup(context.Background(), "batch-1"))

	assert.Equal(t, []string{"batch-1"}, provider.deleteCalls)
	assert.False(t, mr.Exists(resultsKey("batch-1")))
}

func TestCleanup_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{deleteErr: fmt.Errorf("provider unavailable")}
	store, _ := newTestResultStore(t, provider)

	err := store.Cleanup(context.Background(), "batch-1")

	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	assert.Equal(t, errors.ErrCodeBatchCleanupFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}
