// Package boundary downloads postal-code boundary GeoJSON for the
// location chart.
package boundary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nickswetUCSD/feeding-sd-exploration/internal/observability"
	"github.com/paulmach/orb/geojson"
)

// maxDocumentBytes bounds a single boundary download. The statewide ZCTA
// files are on the order of 100 MB.
const maxDocumentBytes = 512 << 20

// Client implements domain.BoundarySource over HTTP.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a boundary client whose requests time out after timeout.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchBoundaries downloads and decodes the FeatureCollection at url.
func (c *Client) FetchBoundaries(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	start := time.Now()
	fc, err := c.fetch(ctx, url)
	c.metrics.BoundaryFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.BoundaryFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.BoundaryFetches.WithLabelValues("success").Inc()
	c.logger.Debug("boundaries fetched", "url", url, "features", len(fc.Features), "duration", time.Since(start))
	return fc, nil
}

func (c *Client) fetch(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("boundary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("boundary source error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read boundary document: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("boundary document exceeds %d bytes", maxDocumentBytes)
	}
	return decode(data)
}

func decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode boundary document: %w", err)
	}
	return fc, nil
}
