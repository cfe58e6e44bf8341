package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		token:   "token",
		http: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

func TestClientGetTrace(t *testing.T) {
	var seenPath, seenAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.RequestURI()
		seenAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"id":"u1","type":"user","text":"hi"}],"last_seq":7}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).GetTrace(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetTrace: %v", err)
	}
	if seenPath != "/v1/sessions/s1/trace" {
		t.Fatalf("unexpected request path: %s", seenPath)
	}
	if seenAuth != "Bearer token" {
		t.Fatalf("unexpected auth header: %q", seenAuth)
	}
	if resp.LastSeq != 7 || len(resp.Events) != 1 || resp.Events[0].ID != "u1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientCatchUpPassesAfterSeq(t *testing.T) {
	var seenPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[{"kind":"text_delta","seq":8,"delta":"hi"}]}`))
	}))
	defer server.Close()

	events, err := testClient(server.URL).CatchUp(context.Background(), "s1", 7)
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if seenPath != "/v1/sessions/s1/events?after=7" {
		t.Fatalf("unexpected request path: %s", seenPath)
	}
	if len(events) != 1 || events[0].Seq != 8 || events[0].Delta != "hi" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestClientDecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such session"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetSession(context.Background(), "missing")
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "no such session" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientRequiresToken(t *testing.T) {
	c := &Client{
		baseURL: "http://127.0.0.1:0",
		http: &http.Client{
			Timeout: time.Second,
		},
	}
	if _, err := c.ListSessions(context.Background()); err == nil {
		t.Fatalf("expected error without a token")
	}
}
