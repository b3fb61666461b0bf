package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

type eventSink struct {
	mu     sync.Mutex
	events []watch.Event
}

func (s *eventSink) Dispatch(ev watch.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) snapshot() []watch.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]watch.Event(nil), s.events...)
}

func TestLoadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translations/pt", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translations":{"title":"Sentinela","start":"Iniciar"}}`))
	}))
	defer srv.Close()

	sink := &eventSink{}
	loader := NewLoader(srv.URL, sink)
	loader.Load(context.Background(), "pt")

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.IsType(t, watch.LanguageLoadStart{}, events[0])

	success, ok := events[1].(watch.LanguageLoadSuccess)
	require.True(t, ok)
	assert.Equal(t, "Iniciar", success.Texts["start"])
}

func TestLoadFailureDispatchesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := &eventSink{}
	loader := NewLoader(srv.URL, sink)
	loader.Load(context.Background(), "es")

	events := sink.snapshot()
	require.Len(t, events, 2)
	assert.IsType(t, watch.LanguageLoadStart{}, events[0])

	failure, ok := events[1].(watch.LanguageLoadError)
	require.True(t, ok)
	assert.Contains(t, failure.Err, "status 502")
}

func TestReactLoadsOnLanguageChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translations":{"title":"Centinela"}}`))
	}))
	defer srv.Close()

	sink := &eventSink{}
	loader := NewLoader(srv.URL, sink)

	prev := watch.NewState()
	next := watch.NewState()
	next.CurrentLanguage = "es"
	loader.React(context.Background(), prev, next)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestReactIgnoresUnchangedLanguage(t *testing.T) {
	sink := &eventSink{}
	loader := NewLoader("http://unused", sink)

	s := watch.NewState()
	loader.React(context.Background(), s, s)
	assert.Empty(t, sink.snapshot())
}
