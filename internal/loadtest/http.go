package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/okian/rehearsal/pkg/logger"
)

// userHeader identifies the caller to a server running without a JWT secret.
const userHeader = "X-User-ID"

// httpClient issues requests on behalf of generated users.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(config *Config) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
	}
}

// do sends body as JSON when non-nil and decodes the response into out when
// non-nil. Any status other than want is an error.
func (c *httpClient) do(ctx context.Context, method, path, user string, body, out any, want int) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(userHeader, user)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// request is one queued call against the service.
type request func(ctx context.Context, c *httpClient) error

// submit runs requests concurrently on config.Workers goroutines.
func submit(ctx context.Context, config *Config, phase string, reqs []request, stats *Stats) {
	logger.Get().Info(ctx, "submitting requests",
		logger.String("phase", phase),
		logger.Int("requests", len(reqs)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config)
	var submitted, failed int64

	ch := make(chan request, config.Workers*2)
	var wg sync.WaitGroup
	for range max(config.Workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				atomic.AddInt64(&submitted, 1)
				if err := r(ctx, client); err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "request failed", logger.String("phase", phase), logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, r := range reqs {
			select {
			case <-ctx.Done():
				return
			case ch <- r:
			}
		}
	}()
	wg.Wait()

	stats.RequestsSubmitted += int(submitted)
	stats.RequestsFailed += int(failed)
	logger.Get().Info(ctx, "phase completed",
		logger.String("phase", phase),
		logger.Int("submitted", int(submitted)),
		logger.Int("failed", int(failed)))
}

func joinRequests(groups []Group) []request {
	var out []request
	for _, g := range groups {
		for _, m := range g.Members {
			path := "/groups/" + g.ID + "/members/" + m.UserID
			out = append(out, func(ctx context.Context, c *httpClient) error {
				return c.do(ctx, http.MethodPut, path, m.UserID, nil, nil, http.StatusNoContent)
			})
		}
	}
	return out
}

type availabilityBody struct {
	Availability []Entry `json:"availability"`
}

func availabilityRequests(groups []Group) []request {
	var out []request
	for _, g := range groups {
		for _, m := range g.Members {
			path := "/users/" + m.UserID + "/availability"
			body := availabilityBody{Availability: m.Availability}
			if body.Availability == nil {
				body.Availability = []Entry{}
			}
			out = append(out, func(ctx context.Context, c *httpClient) error {
				return c.do(ctx, http.MethodPut, path, m.UserID, body, nil, http.StatusNoContent)
			})
		}
	}
	return out
}
