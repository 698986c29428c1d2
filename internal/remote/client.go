// Package remote implements the HTTP client for the file server protocol.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/metrics"
	"github.com/remotefs/remotefs/pkg/fserr"
)

// Client talks to the remote file server. All methods are safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client for the server at baseURL. Each request is
// bounded by timeout, including the one retry on transport failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (c *Client) endpoint(kind, path string) string {
	return c.baseURL + "/" + kind + "/" + escapePath(path)
}

// do issues the request built by build, retrying once immediately if
// the transport fails before any response arrives.
func (c *Client) do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := build(ctx)
		if err != nil {
			cancel()
			return nil, err
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		metrics.RemoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err == nil {
			// Cancel when the body is drained, not before.
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}
		lastErr = err
		if attempt == 0 {
			logging.Debug("retrying remote request",
				zap.String("operation", op),
				zap.Error(err))
		}
	}
	cancel()
	return nil, lastErr
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// classify maps a transport error onto the reachability taxonomy.
func classify(op, path string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fserr.Unreachable(op, path, true, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fserr.Unreachable(op, path, true, err)
	}
	return fserr.Unreachable(op, path, false, err)
}

// ListDirectory fetches the entries of the directory at path.
func (c *Client) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	const op = "list"
	resp, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("list", path), nil)
	})
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "unreachable").Inc()
		return nil, classify(op, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(op, "not_found").Inc()
		return nil, fserr.NotFound(op, path)
	case resp.StatusCode != http.StatusOK:
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return nil, fserr.Protocol(op, path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return nil, fserr.Protocol(op, path, fmt.Errorf("decoding listing: %w", err))
	}
	metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
	return entries, nil
}

// Stat fetches the attributes of the entry at path.
func (c *Client) Stat(ctx context.Context, path string) (Entry, error) {
	const op = "stat"
	resp, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("stat", path), nil)
	})
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "unreachable").Inc()
		return Entry{}, classify(op, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(op, "not_found").Inc()
		return Entry{}, fserr.NotFound(op, path)
	case resp.StatusCode != http.StatusOK:
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return Entry{}, fserr.Protocol(op, path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var entry Entry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return Entry{}, fserr.Protocol(op, path, fmt.Errorf("decoding entry: %w", err))
	}
	metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
	return entry, nil
}

// ReadFile fetches the full contents of the file at path.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	const op = "read"
	resp, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("files", path), nil)
	})
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "unreachable").Inc()
		return nil, classify(op, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(op, "not_found").Inc()
		return nil, fserr.NotFound(op, path)
	case resp.StatusCode != http.StatusOK:
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return nil, fserr.Protocol(op, path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return nil, classify(op, path, err)
	}
	metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
	return data, nil
}

// ReadFileRange fetches length bytes starting at offset from the file
// at path. Servers that ignore the Range header are handled by slicing
// the full body locally. A short or empty result means the requested
// range extends past the end of the file.
func (c *Client) ReadFileRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	const op = "read_range"
	if length <= 0 {
		return nil, nil
	}
	resp, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("files", path), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		return req, nil
	})
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(op, "unreachable").Inc()
		return nil, classify(op, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
			return nil, classify(op, path, err)
		}
		metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
		return data, nil
	case http.StatusOK:
		// Server does not honor Range; slice the full body.
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
			return nil, classify(op, path, err)
		}
		metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
		if offset >= int64(len(data)) {
			return nil, nil
		}
		end := offset + length
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		return data[offset:end], nil
	case http.StatusRequestedRangeNotSatisfiable:
		metrics.RemoteRequests.WithLabelValues(op, "ok").Inc()
		return nil, nil
	case http.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(op, "not_found").Inc()
		return nil, fserr.NotFound(op, path)
	default:
		metrics.RemoteRequests.WithLabelValues(op, "error").Inc()
		return nil, fserr.Protocol(op, path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// Health checks that the server is reachable and responding.
func (c *Client) Health(ctx context.Context) error {
	const op = "health"
	resp, err := c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	})
	if err != nil {
		return classify(op, "", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fserr.Protocol(op, "", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
