package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

const (
	pullPath   = "/api/sync/pull"
	pushPath   = "/api/sync/push"
	healthPath = "/api/health"
)

// HTTPTransport talks JSON over HTTP to the sync authority. Requests are
// bounded by the client timeout; on timeout the call fails with
// ErrUnavailable and the caller's cycle aborts with local state untouched.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport returns a transport for the authority at baseURL.
// token may be empty; when set it is attached as a bearer credential on
// every request.
func NewHTTPTransport(baseURL string, token string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Pull(ctx context.Context, cursor string) (*syncapi.PullResponse, error) {
	u := t.baseURL + pullPath
	if cursor != "" {
		u += "?since=" + url.QueryEscape(cursor)
	}

	var resp syncapi.PullResponse
	if err := t.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	return &resp, nil
}

func (t *HTTPTransport) Push(ctx context.Context, req *syncapi.PushRequest) (*syncapi.PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("push: failed to encode request: %w", err)
	}

	var resp syncapi.PushResponse
	if err := t.do(ctx, http.MethodPost, t.baseURL+pushPath, body, &resp); err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	return &resp, nil
}

func (t *HTTPTransport) Ping(ctx context.Context) error {
	if err := t.do(ctx, http.MethodGet, t.baseURL+healthPath, nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, method, u string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set(common.AuthHeaderName, common.AuthScheme+" "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all retryable later.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(b))
	}
}
