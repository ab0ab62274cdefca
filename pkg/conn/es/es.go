package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	xe "github.com/opst/somigrate/pkg/errors"
	"github.com/opst/somigrate/pkg/savedobjects/indexmeta"
	"github.com/opst/somigrate/pkg/utils/retry"
)

var (
	// ErrAmbiguousIndex means an alias resolves to multiple indices.
	ErrAmbiguousIndex = errors.New("es: index name resolves to multiple indices")
)

// ResponseError is an error response from Elasticsearch.
type ResponseError struct {
	Status int
	Body   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("es: unexpected response: status %d: %s", e.Status, e.Body)
}

const (
	DefaultMaxRetries    = 5
	DefaultRetryInterval = 500 * time.Millisecond

	// limit of response body kept in ResponseError.
	maxErrorBody = 4 << 10
)

type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string

	// MaxRetries is the number of retries for responses 429, 502, 503 and 504.
	//
	// Zero means DefaultMaxRetries. Negative means no retry.
	MaxRetries int

	// RetryInterval is the first interval of retry. It doubles on each retry.
	//
	// Zero means DefaultRetryInterval.
	RetryInterval time.Duration

	// Transport replaces the HTTP transport. nil for default.
	Transport http.RoundTripper
}

// Conn reads and writes `_meta` of saved-objects indices.
type Conn struct {
	client        *elasticsearch.Client
	maxRetries    int
	retryInterval time.Duration
}

func New(cfg Config) (*Conn, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		APIKey:       cfg.APIKey,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}

	maxRetries := cfg.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	return &Conn{client: client, maxRetries: maxRetries, retryInterval: interval}, nil
}

func retriable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type result struct {
	status int
	body   []byte
}

// do performs a request, retrying on temporary failures.
//
// The returned error is *ResponseError for non-2xx statuses except 404, or an error of transport.
func (c *Conn) do(ctx context.Context, req func() (*esapi.Response, error)) (result, error) {
	backoff := retry.Limit(retry.ExponentialBackoff(c.retryInterval, 2), c.maxRetries)
	return retry.Blocking(ctx, backoff, func() (result, error) {
		res, err := req()
		if err != nil {
			return result{}, err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return result{}, err
		}
		r := result{status: res.StatusCode, body: body}

		if retriable(res.StatusCode) {
			return r, fmt.Errorf("%w: %w", retry.ErrRetry, responseError(r))
		}
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			return r, responseError(r)
		}
		return r, nil
	})
}

func responseError(r result) *ResponseError {
	body := r.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &ResponseError{Status: r.status, Body: string(body)}
}

// IndexMeta reads `_meta` of the index.
//
// # Args
//
// - ctx: context
//
// - index: name of an index or an alias. An alias should point a single index.
//
// # Returns
//
// - *indexmeta.Meta: `_meta` of the index. nil if the index has no `_meta`.
//
// - bool: true if the index exists.
//
// - error: ErrAmbiguousIndex, *ResponseError, or other errors from transport.
func (c *Conn) IndexMeta(ctx context.Context, index string) (*indexmeta.Meta, bool, error) {
	r, err := c.do(ctx, func() (*esapi.Response, error) {
		return c.client.Indices.GetMapping(
			c.client.Indices.GetMapping.WithContext(ctx),
			c.client.Indices.GetMapping.WithIndex(index),
		)
	})
	if err != nil {
		return nil, false, xe.WrapWithNote(index, err)
	}
	if r.status == http.StatusNotFound {
		return nil, false, nil
	}

	body := map[string]struct {
		Mappings struct {
			Meta *indexmeta.Meta `json:"_meta"`
		} `json:"mappings"`
	}{}
	if err := json.Unmarshal(r.body, &body); err != nil {
		return nil, false, xe.WrapWithNote(index, err)
	}
	if len(body) != 1 {
		names := make([]string, 0, len(body))
		for name := range body {
			names = append(names, name)
		}
		return nil, false, fmt.Errorf("%w: %s -> %v", ErrAmbiguousIndex, index, names)
	}
	for _, m := range body {
		return m.Mappings.Meta, true, nil
	}
	panic("unreachable")
}

// PutMeta replaces `_meta` of the index.
func (c *Conn) PutMeta(ctx context.Context, index string, meta indexmeta.Meta) error {
	payload, err := json.Marshal(map[string]any{"_meta": meta})
	if err != nil {
		return xe.Wrap(err)
	}

	r, err := c.do(ctx, func() (*esapi.Response, error) {
		return c.client.Indices.PutMapping(
			[]string{index}, bytes.NewReader(payload),
			c.client.Indices.PutMapping.WithContext(ctx),
		)
	})
	if err != nil {
		return xe.WrapWithNote(index, err)
	}
	if r.status == http.StatusNotFound {
		return xe.WrapWithNote(index, responseError(r))
	}
	return nil
}

// CreateIndex creates the index with `_meta`.
func (c *Conn) CreateIndex(ctx context.Context, index string, meta indexmeta.Meta) error {
	payload, err := json.Marshal(map[string]any{
		"mappings": map[string]any{"_meta": meta},
	})
	if err != nil {
		return xe.Wrap(err)
	}

	r, err := c.do(ctx, func() (*esapi.Response, error) {
		return c.client.Indices.Create(
			index,
			c.client.Indices.Create.WithBody(bytes.NewReader(payload)),
			c.client.Indices.Create.WithContext(ctx),
		)
	})
	if err != nil {
		return xe.WrapWithNote(index, err)
	}
	if r.status == http.StatusNotFound {
		return xe.WrapWithNote(index, responseError(r))
	}
	return nil
}
