package notification

import (
	"context"
	"errors"
	"testing"

	"beacon/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T, transports ...Transport) *Worker {
	t.Helper()
	log, _ := captureLogger()
	d, err := NewDispatcher(transports, WithLogger(log))
	require.NoError(t, err)
	return NewWorker(d, newTestRegistry(t))
}

func TestWorker_ProcessTask(t *testing.T) {
	tr := &fakeTransport{name: "log"}
	w := newTestWorker(t, tr)

	err := w.ProcessTask(context.Background(), &DispatchPayload{
		ID:       "d-1",
		Category: "deploy",
		Message:  "v2 live",
		Context:  ContextOf("region", "eu"),
	})
	require.NoError(t, err)
	assert.Equal(t, "v2 live", tr.message)
	assert.Equal(t, ContextOf("region", "eu"), tr.mctx)
}

func TestWorker_DeliveryFailureIsNotRetried(t *testing.T) {
	tr := &fakeTransport{name: "slack", err: errors.New("down")}
	w := newTestWorker(t, tr)

	err := w.ProcessTask(context.Background(), &DispatchPayload{ID: "d-2", Category: "deploy", Message: "x"})
	assert.NoError(t, err)
	assert.Equal(t, int32(1), tr.calls.Load())
}

func TestWorker_UnknownCategory(t *testing.T) {
	tr := &fakeTransport{name: "log"}
	w := newTestWorker(t, tr)

	err := w.ProcessTask(context.Background(), &DispatchPayload{ID: "d-3", Category: "gone"})
	var validation *common.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Zero(t, tr.calls.Load())
}

func TestDispatchPayload_TaskRoundTrip(t *testing.T) {
	p := &DispatchPayload{ID: "d-4", Category: "deploy", Message: "m", Context: ContextOf("b", "1", "a", "2")}
	task, err := NewDispatchTask(p)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeDispatch, task.Type())

	got, err := ParseDispatchPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = ParseDispatchPayload([]byte("{"))
	assert.Error(t, err)
}
