package odata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
	"github.com/couchcryptid/odata-mobility-chart/internal/observability"
)

const (
	resourceIndex = "index"
	maxBackoff    = 5 * time.Second
)

// Options tunes a Client. Zero values mean a single attempt with no limit
// beyond MaxInFlight.
type Options struct {
	Timeout     time.Duration
	MaxInFlight int
	Retries     int
	Backoff     time.Duration
}

// Client fetches CBS OData documents over HTTP. It is safe for concurrent use;
// at most MaxInFlight requests run at once.
type Client struct {
	httpClient *http.Client
	inflight   *semaphore.Weighted
	retries    int
	backoff    time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OData client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		inflight: semaphore.NewWeighted(int64(opts.MaxInFlight)),
		retries:  opts.Retries,
		backoff:  opts.Backoff,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics,
		logger:   logger,
	}
}

// FetchIndex fetches the resource index served at a dataset root URL.
func (c *Client) FetchIndex(ctx context.Context, rootURL string) (domain.ResourceIndex, error) {
	var idx domain.ResourceIndex
	if err := c.getJSON(ctx, rootURL, resourceIndex, &idx); err != nil {
		return domain.ResourceIndex{}, err
	}
	idx.Source = rootURL
	return idx, nil
}

// FetchLookup resolves name in idx and fetches that dimension table.
func (c *Client) FetchLookup(ctx context.Context, idx domain.ResourceIndex, name string) (*domain.LookupTable, error) {
	u, err := idx.Resolve(name)
	if err != nil {
		return nil, err
	}
	var doc domain.LookupDocument
	if err := c.getJSON(ctx, u, name, &doc); err != nil {
		return nil, err
	}
	return domain.NewLookupTable(name, doc.Value), nil
}

// FetchFacts resolves the typed data set in idx and fetches its rows.
func (c *Client) FetchFacts(ctx context.Context, idx domain.ResourceIndex) ([]domain.FactRecord, error) {
	u, err := idx.Resolve(domain.ResourceTypedDataSet)
	if err != nil {
		return nil, err
	}
	var doc domain.FactDocument
	if err := c.getJSON(ctx, u, domain.ResourceTypedDataSet, &doc); err != nil {
		return nil, err
	}
	return doc.Value, nil
}

// getJSON fetches u and decodes the body into v, retrying transport errors
// up to c.retries times with exponential backoff.
func (c *Client) getJSON(ctx context.Context, u, resource string, v any) error {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		err := c.fetchOnce(ctx, u, resource, v)
		if err == nil {
			return nil
		}

		var te *domain.TransportError
		if !errors.As(err, &te) || !te.Retryable() || attempt >= c.retries || ctx.Err() != nil {
			return err
		}

		c.metrics.FetchRetries.WithLabelValues(resource).Inc()
		c.logger.Warn("fetch failed, retrying",
			"resource", resource,
			"url", u,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, c.clock, backoff) {
			return err
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (c *Client) fetchOnce(ctx context.Context, u, resource string, v any) error {
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return &domain.TransportError{URL: u, Err: err}
	}
	defer c.inflight.Release(1)

	start := c.clock.Now()
	defer func() {
		c.metrics.FetchDuration.WithLabelValues(resource).Observe(c.clock.Since(start).Seconds())
	}()

	c.logger.Debug("fetching", "resource", resource, "url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(resource, "transport_error").Inc()
		return &domain.TransportError{URL: u, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(resource, "transport_error").Inc()
		return &domain.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.FetchRequests.WithLabelValues(resource, "transport_error").Inc()
		return &domain.TransportError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.metrics.FetchRequests.WithLabelValues(resource, "decode_error").Inc()
		if errors.Is(err, domain.ErrInvalidValue) {
			return fmt.Errorf("decode %s: %w", u, err)
		}
		return &domain.DecodeError{URL: u, Err: err}
	}

	c.metrics.FetchRequests.WithLabelValues(resource, "success").Inc()
	return nil
}

// sleepWithContext is retry.SleepWithContext on the client's clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
