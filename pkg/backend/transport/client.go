package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fastygo/places/pkg/logger"
)

// Service tags a request with the backend API it targets.
type Service string

const (
	ServiceAuth    Service = "auth"
	ServiceREST    Service = "rest"
	ServiceStorage Service = "storage"
)

const defaultTimeout = 15 * time.Second

// ErrMissingConfig is returned when the client is built without a base URL or key.
var ErrMissingConfig = errors.New("transport: base URL and anon key are required")

// Config holds the settings of a backend transport.
type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
	// HTTPClient overrides the fasthttp client, e.g. to dial an in-memory listener.
	HTTPClient *fasthttp.Client
	Meter      metric.Meter
	Logger     *zap.Logger
}

// Client issues requests against the backend and normalizes failures into *Error.
type Client struct {
	baseURL string
	anonKey string
	timeout time.Duration
	http    *fasthttp.Client
	metrics *instruments
	logger  *zap.Logger
}

// Request describes one backend call. Path is relative to the base URL and
// RawQuery is appended verbatim.
type Request struct {
	Service     Service
	Method      string
	Path        string
	RawQuery    string
	Header      map[string]string
	ContentType string
	Body        []byte
	// Bearer is the access token to send; empty means the anon key.
	Bearer string
	// NoAuthorization omits the Authorization header and sends only apikey.
	NoAuthorization bool
}

// Response is a fully buffered backend response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Err returns nil for 2xx responses and a parsed *Error otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	if r == nil {
		return NetworkError(nil)
	}
	return ParseError(r.Status, r.Body)
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" || cfg.AnonKey == "" {
		return nil, ErrMissingConfig
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			Name:                     "places-client",
			ReadTimeout:              cfg.Timeout,
			WriteTimeout:             cfg.Timeout,
			NoDefaultUserAgentHeader: true,
		}
	}
	metrics, err := newInstruments(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("transport metrics: %w", err)
	}
	return &Client{
		baseURL: base,
		anonKey: cfg.AnonKey,
		timeout: cfg.Timeout,
		http:    httpClient,
		metrics: metrics,
		logger:  cfg.Logger,
	}, nil
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// AnonKey returns the public API key.
func (c *Client) AnonKey() string { return c.anonKey }

// URL joins the base URL with path and an optional raw query.
func (c *Client) URL(path, rawQuery string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Headers returns the auth headers every backend call carries.
func (c *Client) Headers(bearer string) map[string]string {
	if bearer == "" {
		bearer = c.anonKey
	}
	return map[string]string{
		"apikey":        c.anonKey,
		"Authorization": "Bearer " + bearer,
	}
}

// Do executes req. A non-nil error is always an *Error with Status zero;
// HTTP level failures come back as a Response and are turned into errors by Response.Err.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, NetworkError(err)
	}
	method := req.Method
	if method == "" {
		method = fasthttp.MethodGet
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.URI().DisablePathNormalizing = true
	httpReq.SetRequestURI(c.URL(req.Path, req.RawQuery))
	httpReq.Header.SetMethod(method)
	httpReq.Header.Set("apikey", c.anonKey)
	if !req.NoAuthorization {
		bearer := req.Bearer
		if bearer == "" {
			bearer = c.anonKey
		}
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reqID := logger.RequestID(ctx); reqID != "" {
		httpReq.Header.Set("X-Request-Id", reqID)
	}
	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.SetContentType(contentType)
		httpReq.SetBody(req.Body)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	log := logger.WithRequestID(ctx, c.logger).With(
		zap.String("service", string(req.Service)),
		zap.String("method", method),
		zap.String("path", req.Path),
	)

	start := time.Now()
	err := c.http.DoDeadline(httpReq, httpResp, deadline)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.record(ctx, req.Service, method, 0, elapsed)
		log.Warn("backend request failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, NetworkError(err)
	}

	status := httpResp.StatusCode()
	c.metrics.record(ctx, req.Service, method, status, elapsed)
	log.Debug("backend request", zap.Int("status", status), zap.Duration("elapsed", elapsed))

	return &Response{
		Status: status,
		Body:   append([]byte(nil), httpResp.Body()...),
	}, nil
}

// JSON marshals payload, executes req and decodes a 2xx body into out when
// out is non-nil. Non-2xx responses return a parsed *Error.
func (c *Client) JSON(ctx context.Context, req Request, payload, out any) error {
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return &Error{Message: "encode request: " + err.Error(), Err: err}
		}
		req.Body = body
		req.ContentType = "application/json"
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Status: resp.Status, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// Probe reports whether target answers at all. Any HTTP status counts as
// reachable; only transport failures return an error.
func (c *Client) Probe(ctx context.Context, target string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("apikey", c.anonKey)
	resp.SkipBody = true

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("connectivity probe failed", zap.String("target", target), zap.Error(err))
		return NetworkError(err)
	}
	return nil
}
