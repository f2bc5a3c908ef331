package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"beacon/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	payloads []*DispatchPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueDispatch(_ context.Context, p *DispatchPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(map[string]*Category{
		"Payment_Failed": MustCategory(SeverityError, "Payment failed"),
		"deploy":         MustCategory(SeverityInfo, "Deploy"),
	})
	require.NoError(t, err)
	return r
}

func newTestService(t *testing.T, enqueuer Enqueuer, transports ...Transport) *Service {
	t.Helper()
	log, _ := captureLogger()
	d, err := NewDispatcher(transports, WithLogger(log))
	require.NoError(t, err)
	return NewService(d, newTestRegistry(t), enqueuer)
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, []string{"deploy", "payment_failed"}, r.Names())

	c, ok := r.Lookup(" PAYMENT_FAILED ")
	require.True(t, ok)
	assert.Equal(t, "Payment failed", c.Description())

	_, err := NewRegistry(map[string]*Category{" ": MustCategory(SeverityInfo, "x")})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRegistry(map[string]*Category{"x": nil})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestService_NotifySync(t *testing.T) {
	ok := &fakeTransport{name: "log"}
	bad := &fakeTransport{name: "slack", err: errors.New("webhook down")}
	svc := newTestService(t, nil, ok, bad)

	resp, err := svc.Notify(context.Background(), &NotifyRequest{
		Category: "payment_failed",
		Message:  "card declined",
		Context:  ContextOf("order", 42),
	})
	require.NoError(t, err)

	assert.True(t, resp.Delivered)
	assert.Equal(t, StatusDelivered, resp.Status)
	assert.NotEmpty(t, resp.ID)
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, OutcomeView{Transport: "log", OK: true, DurationMS: resp.Outcomes[0].DurationMS}, resp.Outcomes[0])
	assert.Equal(t, "webhook down", resp.Outcomes[1].Error)
	assert.Equal(t, "card declined", ok.message)
}

func TestService_NotifyAllFailed(t *testing.T) {
	svc := newTestService(t, nil, &fakeTransport{name: "slack", err: errors.New("down")})

	resp, err := svc.Notify(context.Background(), &NotifyRequest{Category: "deploy", Message: "v2"})
	require.NoError(t, err)
	assert.False(t, resp.Delivered)
	assert.Equal(t, StatusFailed, resp.Status)
}

func TestService_NotifyUnknownCategory(t *testing.T) {
	tr := &fakeTransport{name: "log"}
	svc := newTestService(t, nil, tr)

	_, err := svc.Notify(context.Background(), &NotifyRequest{Category: "nope", Message: "x"})
	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Zero(t, tr.calls.Load())
}

func TestService_NotifyAsync(t *testing.T) {
	tr := &fakeTransport{name: "log"}
	enq := &fakeEnqueuer{}
	svc := newTestService(t, enq, tr)

	resp, err := svc.Notify(context.Background(), &NotifyRequest{
		Category: "deploy",
		Message:  "v2 live",
		Context:  ContextOf("region", "eu"),
		Async:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, resp.Status)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, resp.ID, enq.payloads[0].ID)
	assert.Equal(t, "deploy", enq.payloads[0].Category)
	assert.Equal(t, ContextOf("region", "eu"), enq.payloads[0].Context)
	assert.Zero(t, tr.calls.Load(), "async requests are not dispatched inline")
}

func TestService_NotifyAsyncDisabled(t *testing.T) {
	svc := newTestService(t, nil, &fakeTransport{name: "log"})

	_, err := svc.Notify(context.Background(), &NotifyRequest{Category: "deploy", Async: true})
	var validation *common.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestService_NotifyAsyncEnqueueError(t *testing.T) {
	boom := errors.New("redis down")
	svc := newTestService(t, &fakeEnqueuer{err: boom}, &fakeTransport{name: "log"})

	_, err := svc.Notify(context.Background(), &NotifyRequest{Category: "deploy", Async: true})
	assert.ErrorIs(t, err, boom)
}

func TestService_Categories(t *testing.T) {
	svc := newTestService(t, nil, &fakeTransport{name: "log"})

	assert.Equal(t, []CategoryView{
		{Name: "deploy", Severity: "INFO", Description: "Deploy"},
		{Name: "payment_failed", Severity: "ERROR", Description: "Payment failed"},
	}, svc.Categories())

	_, err := svc.Category("missing")
	var notFound *common.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	assert.Equal(t, []string{"log"}, svc.Transports())
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestHandler_Notify(t *testing.T) {
	tests := []struct {
		name       string
		transports []Transport
		enqueuer   Enqueuer
		body       string
		wantStatus int
		wantOK     bool
	}{
		{
			name:       "delivered",
			transports: []Transport{&fakeTransport{name: "log"}},
			body:       `{"category":"deploy","message":"v2","context":{"b":1,"a":2}}`,
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "all transports failed",
			transports: []Transport{&fakeTransport{name: "slack", err: errors.New("down")}},
			body:       `{"category":"deploy","message":"v2"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "async",
			transports: []Transport{&fakeTransport{name: "log"}},
			enqueuer:   &fakeEnqueuer{},
			body:       `{"category":"deploy","message":"v2","async":true}`,
			wantStatus: http.StatusAccepted,
			wantOK:     true,
		},
		{
			name:       "missing category",
			transports: []Transport{&fakeTransport{name: "log"}},
			body:       `{"message":"v2"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown category",
			transports: []Transport{&fakeTransport{name: "log"}},
			body:       `{"category":"nope","message":"v2"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			transports: []Transport{&fakeTransport{name: "log"}},
			body:       `{"category":`,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(newTestService(t, tt.enqueuer, tt.transports...))
			status, env := doRequest(t, r, http.MethodPost, "/api/v1/notify", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantOK, env.Success)
		})
	}
}

func TestHandler_NotifyPassesOrderedContext(t *testing.T) {
	tr := &fakeTransport{name: "log"}
	r := newTestRouter(newTestService(t, nil, tr))

	status, env := doRequest(t, r, http.MethodPost, "/api/v1/notify",
		`{"category":"payment_failed","message":"declined","context":{"zeta":"1","alpha":"2"}}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, MessageContext{{"zeta", "1"}, {"alpha", "2"}}, tr.mctx)

	var resp NotifyResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, StatusDelivered, resp.Status)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, "log", resp.Outcomes[0].Transport)
}

func TestHandler_Categories(t *testing.T) {
	r := newTestRouter(newTestService(t, nil, &fakeTransport{name: "log"}))

	status, env := doRequest(t, r, http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, status)
	var views []CategoryView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	assert.Len(t, views, 2)

	status, env = doRequest(t, r, http.MethodGet, "/api/v1/categories/deploy", "")
	require.Equal(t, http.StatusOK, status)
	var view CategoryView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "INFO", view.Severity)

	status, env = doRequest(t, r, http.MethodGet, "/api/v1/categories/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestHandler_Transports(t *testing.T) {
	r := newTestRouter(newTestService(t, nil, &fakeTransport{name: "log"}, &fakeTransport{name: "email"}))

	status, env := doRequest(t, r, http.MethodGet, "/api/v1/transports", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"transports":["log","email"]}`, string(env.Data))
}
