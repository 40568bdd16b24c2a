package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPSinkDeliversEvents(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL)
	require.NoError(t, sink.Emit(context.Background(), Event{
		Kind:     KindActionInvocation,
		Action:   "Erc20ActionProvider_transfer",
		Provider: "erc20",
		Network:  "evm/base-sepolia",
	}))

	select {
	case ev := <-received:
		require.Equal(t, "Erc20ActionProvider_transfer", ev.Action)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sink.Close(ctx))
	require.ErrorIs(t, sink.Emit(context.Background(), Event{}), ErrClosed)
}

func TestHTTPSinkDropsWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	sink := NewHTTPSink(srv.URL, WithBufferSize(1))

	var dropped bool
	for i := 0; i < 10; i++ {
		if err := sink.Emit(context.Background(), Event{Action: "a"}); err != nil {
			require.ErrorIs(t, err, ErrDropped)
			dropped = true
			break
		}
	}
	require.True(t, dropped, "expected an event to be dropped")
}

func TestHTTPSinkSwallowsCollectorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL)
	require.NoError(t, sink.Emit(context.Background(), Event{Action: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sink.Close(ctx))
}

func TestInitNoneExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{Exporter: "otlp"})
	require.Error(t, err)
}
