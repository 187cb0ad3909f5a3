package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/crypto"
	"github.com/Xtute-Technologies/tutorlix-next-sub002/internal/logging"
)

const maxResponseBytes = 8 << 20

// TokenSource supplies the bearer token for outgoing calls and knows how to
// obtain a fresh one when the API answers 401.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// Requester is what resource code needs from a Client; it lets tests swap in
// a fake without a network.
type Requester interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  logging.Logger
	flight  *singleflight.Group
}

type Option func(*Client)

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logging.Nop(),
		flight:  &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokens returns a copy of the client that authenticates with ts. The
// copy shares the transport with its parent; refreshes are collapsed per
// copy, since each token source persists its own result.
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	clone.flight = &singleflight.Group{}
	return &clone
}

func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.CloseIdleConnections()
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Multipart is a Request body carrying a single file plus plain fields.
type Multipart struct {
	Field    string
	Filename string
	Content  io.Reader
	Fields   map[string]string
}

type Response struct {
	Status int
	Data   json.RawMessage
	method string
	path   string
}

func (r *Response) Decode(out any) error {
	if len(bytes.TrimSpace(r.Data)) == 0 {
		return &NetworkError{Method: r.method, Path: r.path, Err: errEmptyBody}
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return &NetworkError{Method: r.method, Path: r.path, Err: err}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) Upload(ctx context.Context, method, path string, form Multipart) (*Response, error) {
	return c.Do(ctx, Request{Method: method, Path: path, Body: form})
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	payload, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	token := c.accessToken()
	resp, err := c.send(ctx, req, payload, contentType, requestID, token)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && token != "" && c.tokens != nil {
		fresh, refreshErr := c.refresh(ctx, token)
		if refreshErr != nil {
			c.logger.Debug("token refresh failed for %s %s: %v", req.Method, req.Path, refreshErr)
			if !IsAuth(refreshErr) {
				return nil, refreshErr
			}
			authErr := newAuthError(resp)
			authErr.Err = refreshErr
			return nil, authErr
		}
		resp, err = c.send(ctx, req, payload, contentType, requestID, fresh)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case resp.Status == http.StatusUnauthorized:
		return nil, newAuthError(resp)
	case resp.Status >= 500:
		return nil, newServerError(resp)
	case resp.Status < 200 || resp.Status >= 300:
		return nil, newValidationError(resp)
	}
	return resp, nil
}

func (c *Client) accessToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// refresh collapses concurrent refreshes triggered by the same stale token.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	value, err, _ := c.flight.Do(crypto.HashToken(stale), func() (any, error) {
		return c.tokens.Refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) send(ctx context.Context, req Request, payload []byte, contentType, requestID, token string) (*Response, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		requestsTotal.WithLabelValues(req.Method, "error").Inc()
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(started).Seconds())
	requestsTotal.WithLabelValues(req.Method, strconv.Itoa(httpResp.StatusCode)).Inc()
	if err != nil {
		return nil, &NetworkError{Method: req.Method, Path: req.Path, Err: err}
	}

	return &Response{Status: httpResp.StatusCode, Data: data, method: req.Method, path: req.Path}, nil
}

func encodeBody(body any) ([]byte, string, error) {
	switch value := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return value, "application/json", nil
	case Multipart:
		return encodeMultipart(value)
	case *Multipart:
		return encodeMultipart(*value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

func encodeMultipart(form Multipart) ([]byte, string, error) {
	if form.Field == "" || form.Content == nil {
		return nil, "", fmt.Errorf("multipart body needs a field and content")
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range form.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile(form.Field, form.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, form.Content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
