package moodleapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "s3cr3t-token"

type call struct {
	Method   string
	Function string
	Params   url.Values
}

// fakeMoodle serves web service functions from per-function handlers and records every call.
type fakeMoodle struct {
	url      string
	mu       sync.Mutex
	handlers map[string]func(url.Values) any
	calls    []call
}

func newFakeMoodle(t *testing.T, dryRun bool) (*fakeMoodle, *Client) {
	t.Helper()
	f := &fakeMoodle{handlers: make(map[string]func(url.Values) any)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	f.url = srv.URL

	client, err := NewClient(Config{URL: srv.URL, Token: testToken}, dryRun, zap.NewNop())
	require.NoError(t, err)
	return f, client
}

func (f *fakeMoodle) handle(function string, h func(url.Values) any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[function] = h
}

func (f *fakeMoodle) reply(function string, v any) {
	f.handle(function, func(url.Values) any { return v })
}

func (f *fakeMoodle) callsFor(function string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Function == function {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMoodle) posts() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == http.MethodPost {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMoodle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params := r.Form
	if r.Method == http.MethodPost {
		params = r.PostForm
	}
	fn := params.Get("wsfunction")

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: r.Method, Function: fn, Params: params})
	h, ok := f.handlers[fn]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case params.Get("wstoken") != testToken:
		_ = json.NewEncoder(w).Encode(Exception{Exception: "moodle_exception", ErrorCode: "invalidtoken", Message: "Invalid token"})
	case !ok:
		_ = json.NewEncoder(w).Encode(Exception{Exception: "webservice_access_exception", ErrorCode: "accessexception", Message: "Access control exception"})
	default:
		_ = json.NewEncoder(w).Encode(h(params))
	}
}
