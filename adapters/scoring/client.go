package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pvqc/domain/core"
)

// Client fetches defect severity scores from the EL image-analysis service.
// The engine treats the service as a black box: it asks for one number per
// sample and never sees images or model internals. A sample the service has
// not scored yet is a normal outcome, reported as ok=false with no error.
type Client struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a scoring client for the given service endpoint
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Timeout: timeout,
	}
}

// Score retrieves the defect severity score for a sample
func (c *Client) Score(ctx context.Context, sampleID core.SampleID) (float64, bool, error) {
	url := fmt.Sprintf("%s/v1/defect-scores/%s", c.BaseURL, sampleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: c.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, fmt.Errorf("scoring service http %d: %s", resp.StatusCode, string(raw))
	}

	type scoreDoc struct {
		SampleID      string  `json:"sample_id"`
		SeverityScore float64 `json:"severity_score"`
		ModelVersion  string  `json:"model_version"`
	}
	var decoded scoreDoc
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, false, fmt.Errorf("unmarshal response: %w", err)
	}
	return decoded.SeverityScore, true, nil
}
