package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	entries chan Entry
}

func newCaptureSink() *captureSink {
	return &captureSink{entries: make(chan Entry, 16)}
}

func (s *captureSink) LogSystemEvent(ctx context.Context, entry any) error {
	if e, ok := entry.(Entry); ok {
		s.entries <- e
	}
	return nil
}

func (s *captureSink) next(t *testing.T) Entry {
	t.Helper()
	select {
	case entry := <-s.entries:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("no entry reached the sink")
		return Entry{}
	}
}

func (s *captureSink) empty(t *testing.T) {
	t.Helper()
	select {
	case entry := <-s.entries:
		t.Fatalf("unexpected entry reached the sink: %+v", entry)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSystemLogger_DispatchesToSink(t *testing.T) {
	sink := newCaptureSink()
	l := New(sink, Config{MinLevel: LevelDebug, Service: "cyberpay", Environment: "test"})

	l.Info("Payment processed", LogContext{
		OrderID:   "order-1",
		Operation: "checkout",
		RequestID: "req-1",
		Fields:    map[string]any{"amount": 100.0},
	})

	entry := sink.next(t)
	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "Payment processed", entry.Message)
	assert.Equal(t, "order-1", entry.OrderID)
	assert.Equal(t, "checkout", entry.Operation)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "cyberpay", entry.Service)
	assert.Equal(t, "test", entry.Environment)
	require.NotNil(t, entry.Fields)
	assert.Equal(t, 100.0, entry.Fields["amount"])
}

func TestSystemLogger_ErrorCarriesCause(t *testing.T) {
	sink := newCaptureSink()
	l := New(sink, Config{MinLevel: LevelDebug})

	l.Error("Capture failed", errors.New("connection refused"))

	entry := sink.next(t)
	assert.Equal(t, LevelError, entry.Level)
	assert.Equal(t, "connection refused", entry.Error)
}

func TestSystemLogger_MinLevelFiltering(t *testing.T) {
	sink := newCaptureSink()
	l := New(sink, Config{MinLevel: LevelWarn})

	l.Debug("too quiet")
	l.Info("still too quiet")
	sink.empty(t)

	l.Warn("loud enough")
	assert.Equal(t, LevelWarn, sink.next(t).Level)
}

func TestSystemLogger_DefaultMinLevel(t *testing.T) {
	sink := newCaptureSink()
	l := New(sink, Config{})

	l.Debug("below the info default")
	sink.empty(t)
}

func TestSystemLogger_NilSink(t *testing.T) {
	l := New(nil, Config{MinLevel: LevelDebug})
	// Console-only; must not panic.
	l.Info("no sink configured")
}
