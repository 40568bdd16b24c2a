package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"AgentKit-Chain/pkg/logger"
)

// ErrDropped is returned by HTTPSink.Emit when the buffer is full.
var ErrDropped = errors.New("telemetry buffer full, event dropped")

// ErrClosed is returned by HTTPSink.Emit after Close.
var ErrClosed = errors.New("telemetry sink closed")

// HTTPSink posts events as JSON to a collector from a background goroutine.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	events   chan Event
	log      *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// HTTPSinkOption customises an HTTPSink.
type HTTPSinkOption func(*HTTPSink)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) HTTPSinkOption {
	return func(s *HTTPSink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithBufferSize sets how many events may be queued before new ones are dropped.
func WithBufferSize(size int) HTTPSinkOption {
	return func(s *HTTPSink) {
		if size > 0 {
			s.events = make(chan Event, size)
		}
	}
}

// NewHTTPSink starts the delivery goroutine for endpoint.
func NewHTTPSink(endpoint string, opts ...HTTPSinkOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Second},
		events:   make(chan Event, 256),
		log:      logger.Named("telemetry"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	go s.run()
	return s
}

// Emit enqueues the event without waiting for delivery.
func (s *HTTPSink) Emit(_ context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		return ErrDropped
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (s *HTTPSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *HTTPSink) run() {
	defer close(s.done)
	for ev := range s.events {
		if err := s.post(ev); err != nil {
			s.log.Debug("发送遥测事件失败", slog.String("action", ev.Action), slog.Any("error", err))
		}
	}
}

func (s *HTTPSink) post(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
