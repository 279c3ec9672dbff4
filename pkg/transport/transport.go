// Package transport executes single HTTP exchanges against the location
// sharing API: fixed headers, bearer authorization, a per-request timeout and
// translation of every failure into HTTPError or TransportError.
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

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxMessageLen caps how much of a non-JSON error body ends up in HTTPError.Message.
const maxMessageLen = 512

// Config holds the settings for creating a Transport.
type Config struct {
	// BaseURL is the scheme and host every request path is appended to.
	BaseURL string
	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Header is sent with every request. It is copied; later changes by the
	// caller have no effect.
	Header http.Header
	// HTTPClient performs the requests. If nil, a client with its own
	// connection pool is created.
	HTTPClient *http.Client
	// Logger receives one debug event per exchange. If nil, nothing is logged.
	Logger *zerolog.Logger
}

// Transport is safe for concurrent use. Its header set is fixed at
// construction; WithToken derives a new Transport instead of mutating it.
type Transport struct {
	baseURL    string
	timeout    time.Duration
	header     http.Header
	httpClient *http.Client
	logger     zerolog.Logger
	authorized bool
}

// Request describes one call. At most one of Form and JSON may be set.
type Request struct {
	Op     string     // Operation name used in errors and logs
	Method string     // HTTP method
	Path   string     // Path relative to the base URL, e.g. "/api/my"
	Query  url.Values // Optional query parameters
	Form   url.Values // Optional form-encoded body
	JSON   any        // Optional JSON body
	Expect int        // The only status treated as success; 0 means 200
}

// Response is a successful exchange with its decompressed body.
type Response struct {
	StatusCode int
	Body       []byte

	op     string
	method string
	path   string
}

// New creates a Transport from the given configuration.
func New(config Config) (*Transport, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("transport: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("transport: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Transport{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		timeout:    timeout,
		header:     config.Header.Clone(),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithToken returns a Transport that shares the connection pool with t and
// sends "Authorization: Bearer <token>" on every request.
func (t *Transport) WithToken(token string) *Transport {
	header := t.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", "Bearer "+token)

	derived := *t
	derived.header = header
	derived.authorized = token != ""
	return &derived
}

// Authenticated reports whether a bearer token is attached.
func (t *Transport) Authenticated() bool {
	return t.authorized
}

// Timeout returns the per-request timeout.
func (t *Transport) Timeout() time.Duration {
	return t.timeout
}

// CloseIdleConnections drops pooled connections.
func (t *Transport) CloseIdleConnections() {
	t.httpClient.CloseIdleConnections()
}

// Do performs the request and returns the response when its status equals
// request.Expect. Any other status yields *HTTPError, even when its body
// cannot be decoded. Network failures, timeouts and unreadable success bodies
// yield *TransportError. No retries.
func (t *Transport) Do(ctx context.Context, request Request) (*Response, error) {
	expect := request.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	failure := func(err error) error {
		return &TransportError{Op: request.Op, Method: request.Method, Path: request.Path, Err: err}
	}

	if request.Form != nil && request.JSON != nil {
		return nil, failure(fmt.Errorf("request has both form and JSON bodies"))
	}

	requestURL := t.baseURL + request.Path
	if len(request.Query) > 0 {
		requestURL += "?" + request.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case request.Form != nil:
		body = strings.NewReader(request.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case request.JSON != nil:
		encoded, err := json.Marshal(request.JSON)
		if err != nil {
			return nil, failure(fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(ctx, request.Method, requestURL, body)
	if err != nil {
		return nil, failure(fmt.Errorf("failed to create request: %w", err))
	}
	for key, values := range t.header {
		httpRequest.Header[key] = values
	}
	if contentType != "" {
		httpRequest.Header.Set("Content-Type", contentType)
	}

	started := time.Now()
	httpResponse, err := t.httpClient.Do(httpRequest)
	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("op", request.Op).
			Str("method", request.Method).
			Str("path", request.Path).
			Dur("duration", time.Since(started)).
			Msg("Request failed")
		return nil, failure(err)
	}
	defer httpResponse.Body.Close()

	rawBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, failure(fmt.Errorf("failed to read response body: %w", err))
	}
	responseBody, decodeErr := decodeBody(httpResponse.Header.Get("Content-Encoding"), rawBody)

	t.logger.Debug().
		Str("op", request.Op).
		Str("method", request.Method).
		Str("path", request.Path).
		Int("status", httpResponse.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("Request completed")

	if httpResponse.StatusCode != expect {
		// An undecodable error body only costs the message, not the status.
		message := ""
		if decodeErr == nil {
			message = upstreamMessage(responseBody)
		}
		return nil, &HTTPError{
			Op:         request.Op,
			Method:     request.Method,
			Path:       request.Path,
			StatusCode: httpResponse.StatusCode,
			Expected:   expect,
			Message:    message,
		}
	}
	if decodeErr != nil {
		return nil, failure(fmt.Errorf("failed to decode response body: %w", decodeErr))
	}

	return &Response{
		StatusCode: httpResponse.StatusCode,
		Body:       responseBody,
		op:         request.Op,
		method:     request.Method,
		path:       request.Path,
	}, nil
}

// Decode unmarshals the body into v, keeping JSON numbers as json.Number
// when v holds interface values.
func (r *Response) Decode(v any) error {
	decoder := json.NewDecoder(bytes.NewReader(r.Body))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return &TransportError{
			Op:     r.op,
			Method: r.method,
			Path:   r.path,
			Err:    fmt.Errorf("%w: %v", ErrUnexpectedResponse, err),
		}
	}
	return nil
}

// Object decodes the body as a JSON object.
func (r *Response) Object() (map[string]any, error) {
	var object map[string]any
	if err := r.Decode(&object); err != nil {
		return nil, err
	}
	if object == nil {
		return nil, r.Unexpected("body is not a JSON object")
	}
	return object, nil
}

// Unexpected builds the error for a body that decoded but has the wrong shape.
func (r *Response) Unexpected(detail string) error {
	return &TransportError{
		Op:     r.op,
		Method: r.method,
		Path:   r.path,
		Err:    fmt.Errorf("%w: %s", ErrUnexpectedResponse, detail),
	}
}

// upstreamMessage extracts a human readable message from an error body.
func upstreamMessage(body []byte) string {
	var structured struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Errors  any    `json:"errors"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		switch {
		case structured.Message != "":
			return structured.Message
		case structured.Error != nil:
			return fmt.Sprint(structured.Error)
		case structured.Errors != nil:
			return fmt.Sprint(structured.Errors)
		}
	}

	message := strings.TrimSpace(string(body))
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen]
	}
	return message
}
