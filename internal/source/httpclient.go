package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/telemetry"
)

// Client is the retrying HTTP transport shared by the feed fetchers.
// Transient failures are retried with bounded exponential backoff inside
// the client; permanent failures return immediately.
type Client struct {
	source  string
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *log.Logger
}

// NewClient creates a client labelled with its source tag for logging
// and metrics.
func NewClient(source string, cfg config.FetchConfig) *Client {
	cfg = cfg.Normalize()
	return &Client{
		source:  source,
		client:  &http.Client{Timeout: cfg.Timeout},
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		logger:  log.New(log.Writer(), "[FETCH] ", log.LstdFlags),
	}
}

// Get fetches url and returns the raw body. Failures come back as
// *SourceError; a 401 additionally satisfies errors.Is(err, ErrUnauthorized).
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	started := time.Now()
	body, err := c.get(ctx, url, headers)
	elapsed := time.Since(started)
	if err != nil {
		kind := "transient"
		if se, ok := err.(*SourceError); ok {
			kind = se.Kind.String()
		}
		telemetry.RecordFetch(c.source, kind, elapsed)
		c.logger.Printf("%s GET %s failed after %s: %v", c.source, url, elapsed, err)
		return nil, err
	}
	telemetry.RecordFetch(c.source, "ok", elapsed)
	c.logger.Printf("%s GET %s ok in %s (%d bytes)", c.source, url, elapsed, len(body))
	return body, nil
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &SourceError{Source: c.source, Kind: Permanent, Err: err}
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &SourceError{Source: c.source, Kind: Transient, Err: ctx.Err()}
			}
			lastErr = &SourceError{Source: c.source, Kind: Transient, Err: err}
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if readErr != nil {
					lastErr = &SourceError{Source: c.source, Kind: Transient, Err: readErr}
					break
				}
				return body, nil
			case resp.StatusCode == http.StatusUnauthorized:
				return nil, &SourceError{Source: c.source, Kind: Transient, Err: fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)}
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = &SourceError{Source: c.source, Kind: Transient, Err: fmt.Errorf("%s: %s", resp.Status, firstLine(body))}
			default:
				// 404 and the remaining 4xx family.
				return nil, &SourceError{Source: c.source, Kind: Permanent, Err: fmt.Errorf("%s: %s", resp.Status, firstLine(body))}
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return nil, &SourceError{Source: c.source, Kind: Transient, Err: ctx.Err()}
			}
		}
	}
	return nil, lastErr
}

func firstLine(body []byte) string {
	body = bytes.TrimSpace(body)
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		body = body[:idx]
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
