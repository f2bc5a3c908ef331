package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"beacon/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	name string
	data any
	err  error
}

func (f *fakeRenderer) Render(name string, data any) (string, error) {
	f.name, f.data = name, data
	return "<p>rendered</p>", f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResendService_SendHTML(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	svc := NewResendService("re_test", nil, WithBaseURL(srv.URL+"/"), WithLogger(quietLogger()))
	err := svc.SendHTML(context.Background(), "alerts@example.com", "a@example.com, b@example.com", "Subject", "<h1>Hi</h1><p>there</p>")
	require.NoError(t, err)

	assert.Equal(t, "alerts@example.com", got["from"])
	assert.Equal(t, []any{"a@example.com", "b@example.com"}, got["to"])
	assert.Equal(t, "Subject", got["subject"])
	assert.Equal(t, "<h1>Hi</h1><p>there</p>", got["html"])
	assert.Equal(t, "Hi there", got["text"])
}

func TestResendService_SendHTMLWithTemplate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	renderer := &fakeRenderer{}
	svc := NewResendService("re_test", renderer, WithBaseURL(srv.URL), WithLogger(quietLogger()))

	data := map[string]any{"title": "t"}
	require.NoError(t, svc.SendHTMLWithTemplate(context.Background(), "f@example.com", "to@example.com", "s", "alert", data))

	assert.Equal(t, "alert", renderer.name)
	assert.Equal(t, data, renderer.data)
	assert.Equal(t, "<p>rendered</p>", got["html"])
}

func TestResendService_RenderErrorSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	svc := NewResendService("re_test", &fakeRenderer{err: errors.New("bad template")}, WithBaseURL(srv.URL), WithLogger(quietLogger()))
	err := svc.SendHTMLWithTemplate(context.Background(), "f@example.com", "to@example.com", "s", "alert", nil)
	assert.ErrorContains(t, err, "bad template")
	assert.False(t, called)
}

func TestResendService_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"message":"Invalid from address"}`))
	}))
	defer srv.Close()

	svc := NewResendService("re_test", nil, WithBaseURL(srv.URL), WithLogger(quietLogger()))
	err := svc.SendHTML(context.Background(), "bad", "to@example.com", "s", "<p>x</p>")

	var provider *common.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, "resend", provider.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, provider.StatusCode)
	assert.Equal(t, "Invalid from address", provider.Message)
}

func TestResendService_NoRecipients(t *testing.T) {
	svc := NewResendService("re_test", nil, WithLogger(quietLogger()))
	assert.Error(t, svc.SendHTML(context.Background(), "f@example.com", " , ", "s", "b"))
}
