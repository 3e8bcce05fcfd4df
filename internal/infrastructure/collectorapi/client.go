package collectorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/domain/entities/heatmap"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// Client is the collector API surface the delivery pipeline, migration
// pass, and heatmap reader depend on. Stub implementations back the tests.
type Client interface {
	PostInteraction(ctx context.Context, payload *InteractionPayload) error
	PostVisit(ctx context.Context, payload *VisitPayload) error
	PostMigrateBatch(ctx context.Context, batch *MigrateBatchRequest) (*MigrateBatchResponse, error)
	FetchInteractions(ctx context.Context, page string, startDate, endDate *time.Time) (*heatmap.Dataset, error)
}

// HTTPClient is the production Client speaking JSON over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *logging.ChanneledLogger
}

// NewHTTPClient creates a collector client for the given base URL. Per-call
// deadlines come from the caller's context; the transport itself carries no
// timeout so retry sends can use a tighter budget than first sends.
func NewHTTPClient(baseURL string, logger *logging.ChanneledLogger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger,
	}
}

// PostInteraction ships one interaction event.
func (c *HTTPClient) PostInteraction(ctx context.Context, payload *InteractionPayload) error {
	return c.postJSON(ctx, "/interactions", payload, nil)
}

// PostVisit ships a visit summary with its guest snapshot.
func (c *HTTPClient) PostVisit(ctx context.Context, payload *VisitPayload) error {
	return c.postJSON(ctx, "/visits", payload, nil)
}

// PostMigrateBatch ships a migration batch and decodes the count.
func (c *HTTPClient) PostMigrateBatch(ctx context.Context, batch *MigrateBatchRequest) (*MigrateBatchResponse, error) {
	var resp MigrateBatchResponse
	if err := c.postJSON(ctx, "/migrate-batch", batch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchInteractions reads the recorded points for a page, optionally
// bounded by a date range.
func (c *HTTPClient) FetchInteractions(ctx context.Context, page string, startDate, endDate *time.Time) (*heatmap.Dataset, error) {
	params := url.Values{}
	params.Set("page", page)
	if startDate != nil {
		params.Set("startDate", startDate.UTC().Format(time.RFC3339))
	}
	if endDate != nil {
		params.Set("endDate", endDate.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/interactions?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", config.CollectorUserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Delivery().Debug("Interactions fetch failed", "page", page, "error", err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	var decoded InteractionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("malformed interactions response: %w", err)
	}

	c.logger.Delivery().Debug("Interactions fetched", "page", page, "points", len(decoded.Data), "duration", time.Since(start))

	return &heatmap.Dataset{
		Page:                  page,
		Points:                decoded.Data,
		Max:                   decoded.Max,
		CapturedViewportWidth: decoded.CapturedViewportWidth,
		CapturedPageHeight:    decoded.CapturedPageHeight,
	}, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", config.CollectorUserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused before reporting failure.
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("collector returned status %d for %s", resp.StatusCode, path)
	}

	c.logger.Delivery().Debug("Collector POST succeeded", "path", path, "duration", time.Since(start))

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("malformed %s response: %w", path, err)
		}
	}
	return nil
}
