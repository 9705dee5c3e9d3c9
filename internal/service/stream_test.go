package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamHooks struct {
	BaseHooks

	mu     sync.Mutex
	action string
	msgs   []string
	closed chan struct{}
	abort  func()
}

func (h *streamHooks) OnStreamingAction(action string, messages <-chan string, abort func()) {
	h.mu.Lock()
	h.action = action
	h.abort = abort
	h.mu.Unlock()
	go func() {
		for m := range messages {
			h.mu.Lock()
			h.msgs = append(h.msgs, m)
			h.mu.Unlock()
		}
		close(h.closed)
	}()
}

func (h *streamHooks) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func TestStreamingAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)

		io.WriteString(w, "data: part1\n\n")
		f.Flush()
		// Многострочное событие склеивается в одно сообщение.
		io.WriteString(w, "data: a\ndata: b\n\n")
		f.Flush()
		// Пустое событие — keep-alive, наружу не выходит.
		io.WriteString(w, "data: \n\n")
		io.WriteString(w, ": comment\n\n")
		f.Flush()
		io.WriteString(w, "data: part2\n\n")
		f.Flush()
	}))
	defer server.Close()

	hooks := &streamHooks{closed: make(chan struct{})}
	s := New(server.URL, &Options{Transient: true, Hooks: hooks})
	s.actionDefinitions["Export"] = &ActionDefinition{Name: "Export", IsStreaming: true}

	resp, err := s.postJSON(context.Background(), "ExecuteAction", map[string]any{
		"action": "Query.Export",
	})
	require.NoError(t, err)
	assert.Nil(t, resp, "поток не возвращает конверт")

	select {
	case <-hooks.closed:
	case <-time.After(time.Second):
		t.Fatal("канал сообщений не закрылся после конца потока")
	}

	assert.Equal(t, "Export", hooks.action)
	assert.Equal(t, []string{"part1", "a\nb", "part2"}, hooks.seen())
}

func TestStreamingActionReturnsOnFirstMessage(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		io.WriteString(w, "data: first\n\n")
		f.Flush()
		<-release
		io.WriteString(w, "data: second\n\n")
		f.Flush()
	}))
	defer server.Close()

	hooks := &streamHooks{closed: make(chan struct{})}
	s := New(server.URL, &Options{Transient: true, Hooks: hooks})
	s.actionDefinitions["Export"] = &ActionDefinition{Name: "Export", IsStreaming: true}

	done := make(chan error, 1)
	go func() {
		_, err := s.postJSON(context.Background(), "ExecuteAction", map[string]any{
			"action": "Query.Export",
		})
		done <- err
	}()

	// Вызов разрешается первым сообщением, не дожидаясь конца потока.
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("вызов ждал конца потока вместо первого сообщения")
	}
	require.Eventually(t, func() bool {
		return len(hooks.seen()) == 1
	}, time.Second, time.Millisecond)

	// Остальные сообщения досылаются в фоне.
	close(release)
	select {
	case <-hooks.closed:
	case <-time.After(time.Second):
		t.Fatal("канал сообщений не закрылся после конца потока")
	}
	assert.Equal(t, []string{"first", "second"}, hooks.seen())
}

func TestStreamingActionAbort(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		io.WriteString(w, "data: first\n\n")
		f.Flush()
		<-release // поток держится открытым до отмены клиентом
	}))
	defer server.Close()
	defer close(release)

	hooks := &streamHooks{closed: make(chan struct{})}
	s := New(server.URL, &Options{Transient: true, Hooks: hooks})
	s.actionDefinitions["Export"] = &ActionDefinition{Name: "Export", IsStreaming: true}

	done := make(chan error, 1)
	go func() {
		_, err := s.postJSON(context.Background(), "ExecuteAction", map[string]any{
			"action": "Query.Export",
		})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return len(hooks.seen()) == 1
	}, time.Second, time.Millisecond)

	hooks.mu.Lock()
	abort := hooks.abort
	hooks.mu.Unlock()
	abort()

	select {
	case err := <-done:
		// Отмена потока не считается ошибкой.
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("поток не завершился после abort")
	}
}
