package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parley/internal/types"
)

func TestEventStreamParsesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)

		event := types.AgentEvent{
			Kind:      types.AgentEventTextDelta,
			SessionID: "s1",
			Seq:       3,
			Delta:     "hello",
		}
		data, _ := json.Marshal(event)
		_, _ = w.Write(append([]byte("data: "), data...))
		_, _ = w.Write([]byte("\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := &Client{
		baseURL: server.URL,
		token:   "token",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, stop, err := client.EventStream(ctx, "s1")
	if err != nil {
		t.Fatalf("EventStream: %v", err)
	}
	defer stop()

	select {
	case event := <-ch:
		if event.Kind != types.AgentEventTextDelta || event.Delta != "hello" || event.Seq != 3 {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventStreamRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such session"}`))
	}))
	defer server.Close()

	client := &Client{
		baseURL: server.URL,
		token:   "token",
	}
	_, _, err := client.EventStream(context.Background(), "missing")
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}
