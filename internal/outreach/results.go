package outreach

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pipeline-crm/internal/common/database"
	"pipeline-crm/internal/common/errors"
	"pipeline-crm/internal/common/logger"
	"pipeline-crm/internal/common/metrics"
	"pipeline-crm/internal/models"
)

// ResultProvider is the slice of the provider client the result store consumes.
type ResultProvider interface {
	GetBatchResults(ctx context.Context, batchID string) ([]models.OutreachResult, error)
	DeleteBatch(ctx context.Context, batchID string) error
}

// ResultSummary aggregates per-item outcomes for one batch.
type ResultSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Skipped int `json:"skipped"`
}

// ResultStore reads per-item outreach outcomes from the provider and caches
// them in Redis so repeated result views and webhook updates do not hammer
// the provider API.
type ResultStore struct {
	provider ResultProvider
	redis    *database.RedisClient
	ttl      time.Duration
	logger   logger.Logger

	updateMu sync.Mutex // serializes webhook read-modify-writes of the cache
}

func NewResultStore(provider ResultProvider, redisClient *database.RedisClient, ttl time.Duration, log logger.Logger) *ResultStore {
	return &ResultStore{
		provider: provider,
		redis:    redisClient,
		ttl:      ttl,
		logger:   log.WithFields(map[string]interface{}{"component": "outreach-results"}),
	}
}

func resultsKey(batchID string) string {
	return fmt.Sprintf("outreach:batch:%s:results", batchID)
}

// FetchResults returns the per-item outcomes for a batch, preferring the
// cache. A provider failure is wrapped as a retryable error; callers surface
// it as a dismissible banner, never as a fatal session error.
func (s *ResultStore) FetchResults(ctx context.Context, batchID string) ([]models.OutreachResult, error) {
	if cached, ok := s.readCache(ctx, batchID); ok {
		return cached, nil
	}

	results, err := s.provider.GetBatchResults(ctx, batchID)
	if err != nil {
		s.logger.Error("failed to fetch batch results", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
		return nil, errors.NewResultFetchFailedError(batchID, err)
	}

	s.writeCache(ctx, batchID, results)
	return results, nil
}

// Refresh bypasses the cache and pulls fresh outcomes from the provider.
// Used by the manual retry path and the poller.
func (s *ResultStore) Refresh(ctx context.Context, batchID string) ([]models.OutreachResult, error) {
	results, err := s.provider.GetBatchResults(ctx, batchID)
	if err != nil {
		return nil, errors.NewResultFetchFailedError(batchID, err)
	}
	s.writeCache(ctx, batchID, results)
	return results, nil
}

// ApplyStatusUpdate records a provider webhook callback for one opportunity.
// Unknown opportunity ids and invalid statuses are rejected; updates to an
// uncached batch are dropped silently since the next fetch will pick up the
// provider's state anyway.
func (s *ResultStore) ApplyStatusUpdate(ctx context.Context, batchID, opportunityID string, status models.ResponseStatus, at time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid response status %q", status)
	}

	// The cached set is rewritten whole; two interleaved callbacks would
	// lose one update.
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	cached, ok := s.readCache(ctx, batchID)
	if !ok {
		s.logger.Debug("status update for uncached batch, dropping", map[string]interface{}{
			"batchId":       batchID,
			"opportunityId": opportunityID,
		})
		return nil
	}

	updated := false
	for i := range cached {
		if cached[i].OpportunityID == opportunityID {
			cached[i].ResponseStatus = status
			cached[i].Timestamp = at
			updated = true
			break
		}
	}
	if !updated {
		return fmt.Errorf("opportunity %s not found in batch %s", opportunityID, batchID)
	}

	s.writeCache(ctx, batchID, cached)
	return nil
}

// Summarize tallies the outcome counts for a result set.
func Summarize(results []models.OutreachResult) ResultSummary {
	summary := ResultSummary{Total: len(results)}
	for _, r := range results {
		switch r.ResponseStatus {
		case models.ResponseStatusSuccess:
			summary.Success++
		case models.ResponseStatusFailed:
			summary.Failed++
		case models.ResponseStatusSkipped:
			summary.Skipped++
		default:
			summary.Pending++
		}
	}
	return summary
}

// ExportCSV writes the result set as CSV: a header row, then one row per
// item in the stored order.
func (s *ResultStore) ExportCSV(w io.Writer, results []models.OutreachResult) error {
	writer := csv.NewWriter(w)

	header := []string{"Status", "Opportunity Name", "Client Name", "Client Phone", "Timestamp"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		row := []string{
			string(r.ResponseStatus),
			r.OpportunityName,
			r.ClientName,
			r.ClientPhone,
			r.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportFilename is the download name for a batch's CSV export.
func ExportFilename(batchID string) string {
	return fmt.Sprintf("outreach_results_%s.csv", batchID)
}

// Cleanup discards the batch on the provider side and drops the cached
// result set. Callers guarantee exactly-once invocation per session; the
// operation itself tolerates an already-deleted batch.
func (s *ResultStore) Cleanup(ctx context.Context, batchID string) error {
	if err := s.provider.DeleteBatch(ctx, batchID); err != nil {
		return errors.NewBatchCleanupFailedError(batchID, err)
	}

	if err := s.redis.Del(ctx, resultsKey(batchID)); err != nil {
		s.logger.Warn("failed to drop cached results", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
	}

	metrics.OutreachBatchesCleaned.Inc()
	s.logger.Info("outreach batch cleaned up", map[string]interface{}{"batchId": batchID})
	return nil
}

func (s *ResultStore) readCache(ctx context.Context, batchID string) ([]models.OutreachResult, bool) {
	raw, err := s.redis.Get(ctx, resultsKey(batchID))
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("result cache read failed", map[string]interface{}{
				"batchId": batchID,
				"error":   err.Error(),
			})
		}
		return nil, false
	}

	var results []models.OutreachResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		s.logger.Warn("result cache entry corrupt, ignoring", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
		return nil, false
	}
	return results, true
}

func (s *ResultStore) writeCache(ctx context.Context, batchID string, results []models.OutreachResult) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, resultsKey(batchID), data, s.ttl); err != nil {
		s.logger.Warn("result cache write failed", map[string]interface{}{
			"batchId": batchID,
			"error":   err.Error(),
		})
	}
}
