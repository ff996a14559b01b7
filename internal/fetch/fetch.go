// Package fetch performs JSON requests against the Observe API and
// classifies failures into errors that carry the HTTP status.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Options mirrors the subset of request settings the dashboard uses.
type Options struct {
	Method string
	Header http.Header
	Body   any
}

// Error is returned for every failed call. StatusCode is 0 when no
// response was received.
type Error struct {
	StatusCode int
	Message    string
	Data       json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

type Client struct {
	http   *http.Client
	logger *zap.Logger
}

func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: httpClient, logger: logger}
}

// JSON issues the request and parses the body as JSON whatever the status.
// A status >= 400 fails with the body's "message" as the error message.
func (c *Client) JSON(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	resp, err := c.do(ctx, url, opts)
	if err != nil {
		return nil, classify(resp, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(resp, fmt.Errorf("read body: %w", err))
	}
	if !json.Valid(body) {
		return nil, classify(resp, fmt.Errorf("invalid json body from %s", url))
	}

	if resp.StatusCode >= 400 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &payload)
		c.logger.Debug("observe api error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("message", payload.Message),
		)
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    payload.Message,
			Data:       json.RawMessage(body),
		}
	}

	return json.RawMessage(body), nil
}

// Download streams a non-JSON body (GPX files, photos) into w.
func (c *Client) Download(ctx context.Context, url string, opts Options, w io.Writer) (string, error) {
	resp, err := c.do(ctx, url, opts)
	if err != nil {
		return "", classify(resp, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		fe := &Error{StatusCode: resp.StatusCode}
		if json.Valid(body) {
			var payload struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(body, &payload)
			fe.Message = payload.Message
			fe.Data = json.RawMessage(body)
		}
		return "", fe
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", classify(resp, fmt.Errorf("copy body: %w", err))
	}
	return resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, url string, opts Options) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		buf, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opts.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.Debug("observe api request", zap.String("method", method), zap.String("url", url))
	return c.http.Do(req)
}

// classify converts a non-HTTP failure into an *Error, keeping the status of
// resp when there is one.
func classify(resp *http.Response, err error) *Error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &Error{StatusCode: status, Err: err}
}
