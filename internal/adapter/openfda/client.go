// Package openfda fetches drug enforcement (recall) records from the openFDA
// API. The client performs a single attempt per call and classifies failures
// into the retry taxonomy; the pipeline's fetch state machine decides whether
// to retry or fall back.
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/recall-analytics/internal/domain"
	"github.com/couchcryptid/recall-analytics/internal/observability"
)

// DefaultLimitMax is the openFDA per-request record ceiling.
const DefaultLimitMax = 1000

// Client queries the openFDA drug enforcement endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limitMax   int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an openFDA client. limitMax caps the per-request record
// limit; pass 0 for the API default of 1000.
func NewClient(baseURL string, timeout time.Duration, limitMax int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if limitMax <= 0 {
		limitMax = DefaultLimitMax
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limitMax: limitMax,
		metrics:  metrics,
		logger:   logger,
	}
}

// Fetch returns raw recall records whose report_date falls within
// [start, end], up to limit records. One HTTP attempt; failures are typed as
// *TransientError or *MalformedError for the caller's retry policy. An empty
// result (openFDA answers 404 when no records match) is not an error.
func (c *Client) Fetch(ctx context.Context, start, end time.Time, limit int) ([]domain.RawRecord, error) {
	if start.After(end) {
		return nil, fmt.Errorf("invalid date range: start %s after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > c.limitMax {
		limit = c.limitMax
	}

	params := url.Values{
		"search": {fmt.Sprintf("report_date:[%s TO %s]", start.Format("20060102"), end.Format("20060102"))},
		"limit":  {fmt.Sprintf("%d", limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	startedAt := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("transient_error").Inc()
		return nil, &TransientError{Err: fmt.Errorf("openfda request: %w", err)}
	}
	defer resp.Body.Close()
	c.metrics.APIDuration.Observe(time.Since(startedAt).Seconds())

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		// openFDA convention: 404 means the query matched no records.
		c.metrics.FetchRequests.WithLabelValues("empty").Inc()
		return nil, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.metrics.FetchRequests.WithLabelValues("transient_error").Inc()
		return nil, &TransientError{Status: resp.StatusCode}
	default:
		c.metrics.FetchRequests.WithLabelValues("malformed_error").Inc()
		return nil, &MalformedError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.FetchRequests.WithLabelValues("malformed_error").Inc()
		return nil, &MalformedError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.Results == nil {
		c.metrics.FetchRequests.WithLabelValues("malformed_error").Inc()
		return nil, &MalformedError{Err: errors.New("response has no results field")}
	}

	c.metrics.FetchRequests.WithLabelValues("success").Inc()
	c.logger.Debug("openfda fetch succeeded",
		"records", len(body.Results),
		"total_matched", body.Meta.Results.Total,
	)
	return body.Results, nil
}

// openFDA API response envelope.

type response struct {
	Meta    meta               `json:"meta"`
	Results []domain.RawRecord `json:"results"`
}

type meta struct {
	Results metaResults `json:"results"`
}

type metaResults struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}
