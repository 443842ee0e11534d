// Package api talks to the CMS REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/time/rate"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// UnauthorizedFunc is called with the token that drew a 401.
type UnauthorizedFunc func(ctx context.Context, token string)

type requestFlags struct {
	anonymous bool
	noHook    bool
}

type requestFlagsKey struct{}

func flagsOf(ctx context.Context) requestFlags {
	f, _ := ctx.Value(requestFlagsKey{}).(requestFlags)
	return f
}

// Anonymous sends requests of ctx without the bearer token. Their 401s
// never end the session.
func Anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestFlagsKey{}, requestFlags{anonymous: true, noHook: true})
}

// SkipUnauthorizedHook keeps the bearer token but reports 401s of ctx only
// to the caller.
func SkipUnauthorizedHook(ctx context.Context) context.Context {
	f := flagsOf(ctx)
	f.noHook = true
	return context.WithValue(ctx, requestFlagsKey{}, f)
}

// Option customises a Client.
type Option func(*Client)

// WithTokenSource attaches bearer credentials to every request.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.tokens = src
	}
}

// WithUnauthorizedHook sets the 401 callback.
func WithUnauthorizedHook(fn UnauthorizedFunc) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit throttles outgoing requests to rps per second.
// Zero or negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.base = rt
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is the single HTTP client of the process.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	base           http.RoundTripper
	timeout        time.Duration
	tokens         TokenSource
	onUnauthorized UnauthorizedFunc
	limiter        *rate.Limiter
	logger         logSDK.Logger
}

// New creates a client rooted at baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		base:    http.DefaultTransport,
		logger:  log.Logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.http = &http.Client{
		Timeout:   c.timeout,
		Transport: &bearerTransport{base: c.base, tokens: c.tokens},
	}
	return c, nil
}

// BaseURL returns the configured root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// bearerTransport adds `Authorization: Bearer <token>` when a token exists.
type bearerTransport struct {
	base   http.RoundTripper
	tokens TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens == nil || flagsOf(req.Context()).anonymous {
		return t.base.RoundTrip(req)
	}

	token := t.tokens.Token()
	if token == "" {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	resp, err := t.base.RoundTrip(clone)
	if resp != nil && resp.Request == nil {
		resp.Request = clone
	}
	return resp, err
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

// Do sends one request and decodes a 2xx json body into out (if not nil).
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context,
	method, path string,
	query url.Values,
	contentType string,
	body io.Reader,
	out any,
) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return networkError(errors.Wrap(err, "wait rate limiter"))
		}
	}

	target := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	startAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("http request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Error(err))
		return networkError(err)
	}
	defer resp.Body.Close() // nolint: errcheck

	c.logger.Debug("http request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("cost", time.Since(startAt)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := parseError(resp.StatusCode, data)
		if apiErr.Kind == KindUnauthorized && c.onUnauthorized != nil && !flagsOf(ctx).noHook {
			c.onUnauthorized(ctx, sentToken(resp))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(errors.Wrap(err, "read response"))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:    KindUnexpected,
			Status:  resp.StatusCode,
			Message: DefaultErrorMessage,
			cause:   errors.Wrapf(err, "decode %s %s", method, path),
		}
	}

	return nil
}

// sentToken recovers the bearer token the transport attached to the request.
func sentToken(resp *http.Response) string {
	if resp == nil || resp.Request == nil {
		return ""
	}
	return strings.TrimPrefix(resp.Request.Header.Get("Authorization"), "Bearer ")
}

// GetJSON issues a GET with query parameters.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, "", nil, out)
}

// SendJSON issues a request with a json body.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrap(err, "marshal body")}
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	return c.Do(ctx, method, path, nil, contentType, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, "", nil, out)
}

// FilePart is one file of a multipart body.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// PostMultipart posts form fields plus optional files as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, fields url.Values, files []FilePart, out any) error {
	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := writer.WriteField(k, v); err != nil {
				return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrapf(err, "write field %q", k)}
			}
		}
	}

	for _, f := range files {
		if f.Reader == nil {
			continue
		}
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		hdr.Set("Content-Type", ct)

		part, err := writer.CreatePart(hdr)
		if err != nil {
			return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrapf(err, "create part %q", f.Field)}
		}
		if _, err = io.Copy(part, f.Reader); err != nil {
			return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrapf(err, "copy file %q", f.FileName)}
		}
	}

	if err := writer.Close(); err != nil {
		return &Error{Kind: KindUnexpected, Message: DefaultErrorMessage, cause: errors.Wrap(err, "close multipart writer")}
	}

	return c.Do(ctx, http.MethodPost, path, nil, writer.FormDataContentType(), buf, out)
}
