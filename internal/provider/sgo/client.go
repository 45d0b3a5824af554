package sgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"OddsSync/internal/config"
	"OddsSync/internal/model"
	"OddsSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// ErrRateLimited signals an HTTP 429 from the provider. Pagination stops for
// this invocation and the caller reports partial results; the limiter window
// is long enough that inline retries would just burn the quota further.
var ErrRateLimited = errors.New("provider rate limit reached")

// permanentError marks failures retrying cannot fix (auth, bad request).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Client fetches events and nested odds from the provider's paginated
// /events endpoint. Pure reader: no state beyond config and the HTTP client.
type Client struct {
	cfg         *config.ProviderConfig
	httpClient  *http.Client
	logger      *logrus.Logger
	backoffBase time.Duration // first retry delay, doubled per attempt
}

// NewClient builds a provider client from config.
func NewClient(cfg *config.ProviderConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg:         cfg,
		httpClient:  httpclient.NewHTTPClient(cfg, logger),
		logger:      logger,
		backoffBase: time.Second,
	}
}

// EventsQuery describes one page request.
type EventsQuery struct {
	LeagueID     string
	StartsAfter  time.Time
	StartsBefore time.Time
	Cursor       string
}

// EventsPage is one fetched page.
type EventsPage struct {
	Events     []model.EventPayload
	NextCursor string
}

// MaxPages exposes the configured page cap so the caller can bound its loop.
func (c *Client) MaxPages() int {
	return c.cfg.MaxPages
}

// FetchEventsPage fetches a single page, retrying timeouts and 5xx responses
// with exponential backoff up to the configured attempt count. A 429 is not
// retried: it comes back as ErrRateLimited immediately.
func (c *Client) FetchEventsPage(ctx context.Context, q EventsQuery) (*EventsPage, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			c.logger.WithFields(logrus.Fields{
				"league":  q.LeagueID,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warn("retrying events page fetch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		page, err := c.fetchOnce(ctx, q)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, ErrRateLimited) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("events page fetch failed after %d attempts: %w", c.cfg.RetryCount, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, q EventsQuery) (*EventsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.eventsURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("build events request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Errorf("close events response body: %v", err)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &permanentError{fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))}
	}

	var parsed model.EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode events response: %w", err)
	}

	return &EventsPage{
		Events:     parsed.Data,
		NextCursor: parsed.NextCursor,
	}, nil
}

func (c *Client) eventsURL(q EventsQuery) string {
	params := url.Values{}
	params.Set("leagueID", q.LeagueID)
	params.Set("type", "match")
	params.Set("startsAfter", q.StartsAfter.UTC().Format("2006-01-02"))
	params.Set("startsBefore", q.StartsBefore.UTC().Format("2006-01-02"))
	params.Set("limit", strconv.Itoa(c.cfg.PageLimit))
	params.Set("includeAltLines", strconv.FormatBool(c.cfg.IncludeAltLines))
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	return fmt.Sprintf("%s/events?%s", c.cfg.BaseURL, params.Encode())
}
