package remote

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

	"github.com/Mussapinga011/PartQuip-sub000/internal/apierror"
	"github.com/Mussapinga011/PartQuip-sub000/internal/infra"
	"github.com/Mussapinga011/PartQuip-sub000/internal/model"
)

// HTTPClient talks to the PartQuip server API. Every call goes through a
// circuit breaker; only transport errors and 5xx responses count as failures.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *infra.CircuitBreaker
}

var _ Backend = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, token string, breaker *infra.CircuitBreaker) *HTTPClient {
	if breaker == nil {
		breaker = infra.NewCircuitBreaker(infra.DefaultCBConfig())
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
	}
}

// RealtimeURL is the websocket endpoint for row change events.
func (c *HTTPClient) RealtimeURL() string {
	u := c.baseURL + "/v1/realtime"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// AuthHeader carries the service token.
func (c *HTTPClient) AuthHeader() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func (c *HTTPClient) FetchAll(ctx context.Context, collection string) ([]model.Record, error) {
	return c.fetch(ctx, collection, nil)
}

func (c *HTTPClient) FetchUpdatedSince(ctx context.Context, collection string, since time.Time) ([]model.Record, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339Nano))
	return c.fetch(ctx, collection, q)
}

func (c *HTTPClient) fetch(ctx context.Context, collection string, q url.Values) ([]model.Record, error) {
	path := "/v1/collections/" + url.PathEscape(collection)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out CollectionResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (c *HTTPClient) Insert(ctx context.Context, collection string, rec model.Record) error {
	return c.do(ctx, http.MethodPost, "/v1/collections/"+url.PathEscape(collection), rec.Data, nil)
}

func (c *HTTPClient) Upsert(ctx context.Context, collection string, rec model.Record) error {
	return c.do(ctx, http.MethodPut, recordPath(collection, rec.ID), rec.Data, nil)
}

func (c *HTTPClient) Update(ctx context.Context, collection string, rec model.Record) error {
	return c.do(ctx, http.MethodPatch, recordPath(collection, rec.ID), rec.Data, nil)
}

func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, recordPath(collection, id), nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func recordPath(collection, id string) string {
	return "/v1/collections/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

// do sends one request. A 4xx response is returned as a client error without
// tripping the breaker.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var clientErr error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return fmt.Errorf("remote: create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			clientErr = statusError(resp, method, path)
			return nil
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return clientErr
}

func statusError(resp *http.Response, method, path string) error {
	var envelope apierror.APIError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
	if envelope.Detail == "" {
		envelope.Detail = http.StatusText(resp.StatusCode)
	}
	detail := envelope.Error()

	var sentinel error
	switch resp.StatusCode {
	case http.StatusConflict:
		sentinel = ErrConflict
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrUnauthorized
	default:
		return fmt.Errorf("remote: %s %s returned %d: %s", method, path, resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: %s %s: %s", sentinel, method, path, detail)
}
