// Package client implements managecms.Gateway and managecms.LocaleProvider
// against a remote management API.
//
// Every mutation reads the current document, patches it and writes it back
// with the version it read, so only a write racing between the two surfaces
// as managecms.ErrVersionConflict. Entry documents and locales are cached for
// a short TTL for reads: Entry and Field may lag a write made elsewhere until
// the cached copy expires.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tendant/simple-manage/pkg/managecms"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 30 * time.Second
)

// Client talks to the management API
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	token      string
	scope      managecms.Scope
	cache      *cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

var (
	_ managecms.Gateway        = (*Client)(nil)
	_ managecms.LocaleProvider = (*Client)(nil)
)

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Its transport is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client. A
// client passed with WithHTTPClient keeps its own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithToken sets the bearer token used when a MutationContext carries none
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithScope sets the space and environment used when a MutationContext
// names none, and by the LocaleProvider methods.
func WithScope(space, environment string) Option {
	return func(c *Client) {
		c.scope = managecms.Scope{Space: space, Environment: environment}
	}
}

// WithCacheTTL sets how long entry documents and locales are cached.
// Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  DefaultTimeout,
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.scope = c.scope.Normalize()

	if c.cacheTTL > 0 {
		c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}
	return c, nil
}

// target returns the scope and token a mutation runs with.
func (c *Client) target(mc managecms.MutationContext) (managecms.Scope, string) {
	scope := c.scope
	if mc.Space != "" {
		scope = mc.Scope()
	}
	token := c.token
	if mc.AccessToken != "" {
		token = mc.AccessToken
	}
	return scope, token
}

type request struct {
	method      string
	path        string
	token       string
	body        io.Reader
	version     int
	contentType string
	headers     map[string]string
	// notFound is returned, wrapped, for a 404
	notFound error
}

// do sends req and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.version > 0 {
		httpReq.Header.Set(api.VersionHeader, fmt.Sprint(req.version))
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	notFound := req.notFound
	if notFound == nil {
		notFound = managecms.ErrNotFound
	}
	return nil, statusError(resp.StatusCode, body, notFound)
}

// statusError maps an error response back onto the error taxonomy.
func statusError(status int, body []byte, notFound error) error {
	id := gjson.GetBytes(body, "sys.id").String()
	message := gjson.GetBytes(body, "message").String()
	if message == "" {
		message = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", notFound, message)
	case http.StatusConflict:
		if id == api.ErrorConflict {
			return fmt.Errorf("%w: %s", managecms.ErrAlreadyExists, message)
		}
		return fmt.Errorf("%w: %s", managecms.ErrVersionConflict, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", managecms.ErrValidation, message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", managecms.ErrPermission, message)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, message)
	}
}

func (c *Client) cached(key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(v.([]byte)), true
}

func (c *Client) store(key string, b []byte) {
	if c.cache != nil {
		c.cache.SetDefault(key, bytes.Clone(b))
	}
}

func (c *Client) evict(key string) {
	if c.cache != nil {
		c.cache.Delete(key)
	}
}
