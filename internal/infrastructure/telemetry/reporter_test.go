package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

func TestNewEvent_FromCheckoutError(t *testing.T) {
	err := apperrors.New(apperrors.CodeOrderCreationFailed,
		apperrors.WithStatus(http.StatusBadRequest),
		apperrors.WithSystemError("ORD-1"),
	)

	event := NewEvent(err, "createOrder", map[string]any{"amount": 100})

	assert.Equal(t, LevelError, event.Level)
	assert.Equal(t, "CREATE_ORDER_ERROR", event.Name)
	assert.Equal(t, err.Message, event.Message)
	assert.Equal(t, "createOrder", event.Metadata["step"])
	assert.Equal(t, http.StatusBadRequest, event.Metadata["status_code"])
	assert.Equal(t, "ORD-1", event.Metadata["system_error"])
	assert.Equal(t, 100, event.Metadata["amount"])
}

func TestNewEvent_ForeignError(t *testing.T) {
	event := NewEvent(errors.New("dial tcp: refused"), "merchant", nil)

	assert.Equal(t, "merchant", event.Name)
	assert.Equal(t, "dial tcp: refused", event.Message)
}

func TestHTTPReporter_PostsEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
		auth     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
		mu.Lock()
		received = append(received, event)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	reporter := NewHTTPReporter(server.URL, "sink-token", logger.NewNopLogger(),
		WithDefaults("go-sdk", "sandbox", "tenant_1"))

	ctx, cancel := context.WithCancel(context.Background())
	reporter.Report(ctx, Event{Name: "PAYMENT_PROCESS_ERROR", RequestID: "req_1_abc"})
	cancel()

	require.NoError(t, reporter.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "go-sdk", received[0].Platform)
	assert.Equal(t, "sandbox", received[0].Env)
	assert.Equal(t, "tenant_1", received[0].TenantID)
	assert.Equal(t, "req_1_abc", received[0].RequestID)
	assert.Equal(t, "Token sink-token", auth)
}

func TestHTTPReporter_SwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	reporter := NewHTTPReporter(server.URL, "", logger.NewNopLogger())
	unreachable := NewHTTPReporter("http://127.0.0.1:1", "", logger.NewNopLogger(), WithTimeout(100*time.Millisecond))

	assert.NotPanics(t, func() {
		reporter.Report(context.Background(), Event{Name: "x"})
		unreachable.Report(context.Background(), Event{Name: "y"})
	})

	assert.NoError(t, reporter.Close(context.Background()))
	assert.NoError(t, unreachable.Close(context.Background()))
}

func TestHTTPReporter_DoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	reporter := NewHTTPReporter(server.URL, "", logger.NewNopLogger())

	start := time.Now()
	reporter.Report(context.Background(), Event{Name: "slow"})
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
