package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// FetchTimeout bounds a whole catalog request, body included.
const FetchTimeout = 5 * time.Second

type Client struct {
	httpClient *http.Client
	userAgent  string
	Timeout    time.Duration
}

func NewClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		userAgent:  userAgent,
		Timeout:    FetchTimeout,
	}
}

// Fetch loads the full item list of a source. Any returned error is a *FetchError.
func (c *Client) Fetch(ctx context.Context, source *Source) ([]Item, error) {
	start := time.Now()

	items, err := c.fetch(ctx, source)
	if err != nil {
		fetchErr := Classify(err)
		slog.Warn("Catalog fetch failed",
			"source", source.Name,
			"category", fetchErr.Category,
			"status", fetchErr.StatusCode,
			"duration", time.Since(start),
			"error", err)
		return nil, fetchErr
	}

	slog.Debug("Catalog fetched", "source", source.Name, "items", len(items), "duration", time.Since(start))
	return items, nil
}

func (c *Client) fetch(ctx context.Context, source *Source) ([]Item, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	items, err := c.do(timeoutCtx, source)
	if err != nil {
		// Only our own bound counts as a timeout. A caller that gave up,
		// cancelled or past its own deadline, is not the remote's fault.
		if ctx.Err() != nil {
			return nil, &FetchError{Category: CategoryUnknown, Err: err}
		}
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, &FetchError{Category: CategoryTimeout, Err: err}
		}
		return nil, err
	}

	return items, nil
}

func (c *Client) do(ctx context.Context, source *Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for name, value := range source.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if items == nil {
		// "null" decodes without error but is not a catalog
		return nil, fmt.Errorf("failed to decode catalog: response is not an array")
	}

	return items, nil
}
