package imagehook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "/submit", "/retrieve", 5*time.Second), srv
}

func TestSubmit_SendsWirePayload(t *testing.T) {
	var got submitRequest
	var path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	err := client.Submit(context.Background(), "id-123", "a red fox at dusk")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if path != "/submit" {
		t.Errorf("path = %s, want /submit", path)
	}
	if got.UniqueID != "id-123" || got.ImageData != "a red fox at dusk" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSubmit_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})

	err := client.Submit(context.Background(), "id-123", "text")
	if err == nil {
		t.Fatal("expected an error on HTTP 500")
	}
	var submitErr *SubmitError
	if !errors.As(err, &submitErr) {
		t.Fatalf("error %T, want *SubmitError", err)
	}
	if submitErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", submitErr.StatusCode)
	}
}

func TestPoll_PendingShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no images key", `{}`},
		{"empty images", `{"images":[]}`},
		{"only malformed urls", `{"images":["not a url","ftp://x/y.png","/relative.png"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})

			urls, err := client.Poll(context.Background(), "id-123")
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if len(urls) != 0 {
				t.Errorf("urls = %v, want pending (empty)", urls)
			}
		})
	}
}

func TestPoll_FiltersMalformedURLs(t *testing.T) {
	var got retrieveRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"images":["http://img.example/1.png","garbage","https://img.example/2.png"]}`))
	})

	urls, err := client.Poll(context.Background(), "id-456")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.UniqueID != "id-456" {
		t.Errorf("request payload = %+v", got)
	}
	want := []string{"http://img.example/1.png", "https://img.example/2.png"}
	if len(urls) != 2 || urls[0] != want[0] || urls[1] != want[1] {
		t.Errorf("urls = %v, want %v", urls, want)
	}
}

func TestPoll_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})

	if _, err := client.Poll(context.Background(), "id-123"); err == nil {
		t.Fatal("expected an error on HTTP 502")
	}
}
