// Package outreach submits message batches to the external outreach provider
// and tracks per-item delivery outcomes.
package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	httpclient "pipeline-crm/internal/common/http"
	"pipeline-crm/internal/models"
)

// BatchRequest is the single submission handed to the provider. The provider
// owns item-level pacing: it delivers one message every DelayMs and reports
// outcomes under the returned batch id.
type BatchRequest struct {
	OpportunityIDs []string `json:"opportunityIds"`
	PipelineID     string   `json:"pipelineId"`
	DelayMs        int      `json:"delayMs"`
}

type submitBatchResponse struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type batchResultsResponse struct {
	Results []models.OutreachResult `json:"results"`
}

// ProviderClient is the HTTP client for the outreach provider API.
type ProviderClient struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

func NewProviderClient(baseURL, apiKey string, timeout time.Duration) *ProviderClient {
	return &ProviderClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

// SubmitBatch submits the full id list plus the per-item delay and returns
// the provider's batch id.
func (c *ProviderClient) SubmitBatch(ctx context.Context, req *BatchRequest) (string, error) {
	url := fmt.Sprintf("%s/v1/batches", c.baseURL)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("batch submission failed (status %d): %s", resp.StatusCode, string(body))
	}

	var submitResp submitBatchResponse
	if err := json.Unmarshal(body, &submitResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if submitResp.BatchID == "" {
		return "", fmt.Errorf("no batch id in response")
	}

	return submitResp.BatchID, nil
}

// GetBatchResults retrieves per-item delivery outcomes for a batch.
func (c *ProviderClient) GetBatchResults(ctx context.Context, batchID string) ([]models.OutreachResult, error) {
	url := fmt.Sprintf("%s/v1/batches/%s/results", c.baseURL, batchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get batch results (status %d): %s", resp.StatusCode, string(body))
	}

	var resultsResp batchResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&resultsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return resultsResp.Results, nil
}

// DeleteBatch discards a batch and its result set on the provider side.
func (c *ProviderClient) DeleteBatch(ctx context.Context, batchID string) error {
	url := fmt.Sprintf("%s/v1/batches/%s", c.baseURL, batchID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to delete batch (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
