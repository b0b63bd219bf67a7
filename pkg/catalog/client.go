package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"seedharvest/pkg/config"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/ratelimit"
)

// maxBodySize bounds any single response read into memory
const maxBodySize = 32 << 20

// Options configures a catalog Client
type Options struct {
	BaseURL       string
	APIKey        string
	UserAgent     string
	Teams         []string
	PageSize      int
	SortField     string
	SortDirection string
	Mode          string
	Timeout       time.Duration

	// Limiter gates listing and token calls; nil disables limiting
	Limiter ratelimit.Limiter
	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client talks to the catalog API
type Client struct {
	httpClient *http.Client
	opts       Options
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// Response is a raw artifact response, judged later by Classify
type Response struct {
	Status int
	Body   []byte
}

// NewClient creates a new catalog client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Mode == "" {
		opts.Mode = "normal"
	}
	if opts.Teams == nil {
		opts.Teams = []string{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewPerMinute(0)
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		limiter:    limiter,
		logger:     log.WithField("component", "catalog"),
	}
}

// FromConfig builds a client from the catalog configuration section
func FromConfig(cfg *config.CatalogConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	limiter := ratelimit.NewPerMinute(cfg.RequestsPerMinute)
	if limiter.Unlimited() {
		log.Warn("Catalog rate limiting disabled")
	}
	return NewClient(Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		UserAgent:     cfg.UserAgent,
		Teams:         cfg.Teams,
		PageSize:      cfg.PageSize,
		SortField:     cfg.SortField,
		SortDirection: cfg.SortDirection,
		Mode:          cfg.Mode,
		Timeout:       cfg.Timeout,
		Limiter:       limiter,
	}, log)
}

// FetchPage returns the items of one listing page. An empty slice with a
// nil error marks the end of the catalog.
func (c *Client) FetchPage(ctx context.Context, page int) ([]Item, error) {
	const op = "fetch page"

	body, err := json.Marshal(searchRequest{
		Mode:          c.opts.Mode,
		Visible:       1,
		Categories:    []string{},
		Teams:         c.opts.Teams,
		SortDirection: c.opts.SortDirection,
		SortField:     c.opts.SortField,
		PageNumber:    page,
		PageSize:      c.opts.PageSize,
	})
	if err != nil {
		return nil, errs.Catalog(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, SearchURL(c.opts.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, errs.Catalog(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.callAPI(ctx, op, req)
	if err != nil {
		return nil, err
	}

	var data searchData
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &errs.Error{Type: errs.ErrorTypeCatalog, Op: op, Message: "malformed listing data", Err: err}
		}
	}
	if data.Data == nil {
		data.Data = []Item{}
	}

	c.logger.DebugWithFields("Fetched listing page", map[string]interface{}{
		"page":  page,
		"items": len(data.Data),
	})
	return data.Data, nil
}

// RequestDownloadURL asks the catalog for a short-lived artifact URL
func (c *Client) RequestDownloadURL(ctx context.Context, id string) (string, error) {
	const op = "request download url"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, TokenURL(c.opts.BaseURL, id), nil)
	if err != nil {
		return "", errs.Catalog(op, err)
	}

	env, err := c.callAPI(ctx, op, req)
	if err != nil {
		return "", err
	}

	var url string
	if err := json.Unmarshal(env.Data, &url); err != nil || url == "" {
		return "", &errs.Error{Type: errs.ErrorTypeCatalog, Op: op, Message: "no download url in response"}
	}
	return url, nil
}

// FetchArtifact GETs an artifact URL. The status and body are returned
// unjudged for any HTTP response; only transport failures are errors.
func (c *Client) FetchArtifact(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, errs.Download("fetch artifact", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, errs.Wrap(errs.ErrorTypeNetwork, "fetch artifact", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{}, &errs.Error{Type: errs.ErrorTypeNetwork, Op: "fetch artifact", Code: resp.StatusCode, Err: err}
	}

	c.logger.DebugWithFields("Fetched artifact", map[string]interface{}{
		"status":   resp.StatusCode,
		"size":     len(body),
		"duration": time.Since(start),
	})
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// callAPI sends an authenticated API request and decodes the envelope.
// Any transport failure, non-2xx status, undecodable body or non-zero
// code is a catalog error.
func (c *Client) callAPI(ctx context.Context, op string, req *http.Request) (*envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Catalog(op, err)
	}
	if !c.limiter.Allow() {
		c.logger.DebugWithFields("Waiting for catalog rate limiter", map[string]interface{}{"op": op})
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Catalog(op, err)
		}
	}

	req.Header.Set("x-api-key", c.opts.APIKey)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Catalog(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeCatalog, Op: op, Code: resp.StatusCode, Err: err}
	}

	c.logger.DebugWithFields("Catalog request completed", map[string]interface{}{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeCatalog,
			Op:      op,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, preview(body)),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeCatalog,
			Op:      op,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("failed to parse response: %s", preview(body)),
			Err:     err,
		}
	}
	if !env.ok() {
		code := "<missing>"
		if env.Code != nil {
			code = string(*env.Code)
		}
		return nil, &errs.Error{
			Type:    errs.ErrorTypeCatalog,
			Op:      op,
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("api code %s: %s", code, env.Message),
		}
	}
	return &env, nil
}

// preview shortens a body for error messages
func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
