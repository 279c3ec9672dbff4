package whoo_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// recordedRequest is what fakeAPI saw for one call.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
	Body   string
}

type cannedResponse struct {
	status int
	body   string
}

// fakeAPI is an in-process stand-in for the service. Responses are keyed by
// "METHOD /path" and, for repeated keys, served in registration order.
type fakeAPI struct {
	mu        sync.Mutex
	responses map[string][]cannedResponse
	requests  []recordedRequest
	server    *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{responses: map[string][]cannedResponse{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeAPI) on(method, path string, status int, body string) *fakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], cannedResponse{status: status, body: body})
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	recorded := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   string(raw),
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		recorded.Form, _ = url.ParseQuery(string(raw))
	}

	f.mu.Lock()
	f.requests = append(f.requests, recorded)
	key := r.Method + " " + r.URL.Path
	queue := f.responses[key]
	var response cannedResponse
	switch len(queue) {
	case 0:
		response = cannedResponse{status: http.StatusNotFound, body: `{"error":"no canned response"}`}
	case 1:
		response = queue[0]
	default:
		response = queue[0]
		f.responses[key] = queue[1:]
	}
	f.mu.Unlock()

	if response.body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(response.status)
	if response.body != "" {
		io.WriteString(w, response.body)
	}
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// newTestClient returns a client holding token "test-token" without the
// verification round trip.
func newTestClient(t *testing.T, api *fakeAPI) *whoo.Client {
	t.Helper()
	client, err := whoo.New(context.Background(), whoo.Config{
		BaseURL:        api.server.URL,
		AccessToken:    "test-token",
		SkipTokenCheck: true,
	})
	require.NoError(t, err)
	return client
}

// newAnonymousClient returns a client without credentials.
func newAnonymousClient(t *testing.T, api *fakeAPI) *whoo.Client {
	t.Helper()
	client, err := whoo.New(context.Background(), whoo.Config{BaseURL: api.server.URL})
	require.NoError(t, err)
	return client
}
