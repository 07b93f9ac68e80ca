package moodleapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"moodle-sync/core/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{Token: "t"}, false, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{URL: "moodle.example.edu"}, false, nil)
	assert.Error(t, err)

	c, err := NewClient(Config{URL: "moodle.example.edu/", Token: "t"}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://moodle.example.edu/webservice/rest/server.php", c.endpoint)
	assert.True(t, c.DryRun())
}

func TestClient_Read(t *testing.T) {
	f, client := newFakeMoodle(t, false)
	f.reply("core_course_get_courses", []map[string]any{{"id": 2, "shortname": "HIS-101"}})

	var out []apiCourse
	err := client.Read(context.Background(), "core_course_get_courses", url.Values{"options[ids][0]": {"2"}}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "HIS-101", out[0].Shortname)

	calls := f.callsFor("core_course_get_courses")
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "json", calls[0].Params.Get("moodlewsrestformat"))
	assert.Equal(t, testToken, calls[0].Params.Get("wstoken"))
	assert.Equal(t, "2", calls[0].Params.Get("options[ids][0]"))
}

func TestClient_Exception(t *testing.T) {
	_, client := newFakeMoodle(t, false)

	err := client.Read(context.Background(), "core_missing_function", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrTransport))
	var exc *Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "accessexception", exc.ErrorCode)
}

func TestClient_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "t"}, false, nil)
	require.NoError(t, err)
	_, err = client.Write(context.Background(), "enrol_manual_enrol_users", nil, nil)
	assert.ErrorIs(t, err, provider.ErrTransport)
	assert.ErrorContains(t, err, "503")
}

func TestClient_RetriesReads(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "t", Retries: 1}, false, nil)
	require.NoError(t, err)
	var out []apiCourse
	require.NoError(t, client.Read(context.Background(), "core_course_get_courses", nil, &out))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_DryRunSkipsWrites(t *testing.T) {
	f, client := newFakeMoodle(t, true)
	f.reply("enrol_manual_enrol_users", nil)

	applied, err := client.Write(context.Background(), "enrol_manual_enrol_users", url.Values{"enrolments[0][userid]": {"3"}}, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, f.posts())
}

func TestClient_TokenNeverLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f, _ := newFakeMoodle(t, false)
	f.reply("core_course_get_courses", []any{})

	for _, dryRun := range []bool{false, true} {
		client, err := NewClient(Config{URL: f.url, Token: testToken}, dryRun, zap.New(core))
		require.NoError(t, err)
		require.NoError(t, client.Read(context.Background(), "core_course_get_courses", nil, &[]apiCourse{}))
		_, _ = client.Write(context.Background(), "core_user_create_users", url.Values{"users[0][username]": {"alice"}}, nil)
	}

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, testToken)
		for k, v := range entry.ContextMap() {
			assert.NotContains(t, k, testToken)
			assert.NotContains(t, fmt.Sprint(v), testToken)
		}
	}
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	client, err := NewClient(Config{URL: "http://127.0.0.1:1", Token: testToken, TimeoutSeconds: 2}, false, nil)
	require.NoError(t, err)

	err = client.Read(context.Background(), "core_course_get_courses", url.Values{"options[ids][0]": {"2"}}, &[]apiCourse{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrTransport))
	assert.NotContains(t, err.Error(), testToken)
	assert.Contains(t, err.Error(), "http://127.0.0.1:1/webservice/rest/server.php")

	_, err = client.Write(context.Background(), "core_user_create_users", url.Values{"users[0][username]": {"alice"}}, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testToken)
}

func TestParseTemplates(t *testing.T) {
	templates, err := ParseTemplates([]string{`^HIS.*=1901`, `^ART=ART-TEMPLATE`, `=2`})
	require.NoError(t, err)
	require.Len(t, templates, 3)

	assert.Equal(t, "2", templateFor(templates, "HIS-101"), "the fallback also matches and wins")
	assert.Equal(t, "2", templateFor(templates, "MTH-100"))

	templates, err = ParseTemplates([]string{`.*=2`, `^HIS=1901`})
	require.NoError(t, err)
	assert.Equal(t, "1901", templateFor(templates, "HIS-101"))
	assert.Equal(t, "2", templateFor(templates, "MTH-100"))
	assert.Equal(t, "", templateFor(nil, "MTH-100"))

	_, err = ParseTemplates([]string{"^HIS"})
	assert.Error(t, err)
	_, err = ParseTemplates([]string{"([=1"})
	assert.Error(t, err)
}
