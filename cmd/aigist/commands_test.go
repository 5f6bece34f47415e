package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestClient_AddDocument(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /documents": `{"document_id":"doc-123","chunks":2}`,
	})

	client := ts.client()

	req := map[string]any{
		"owner":   "default",
		"type":    "text",
		"content": "The sky is blue during the day.",
	}

	resp, err := client.post(ctx, "/documents", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		DocumentID string `json:"document_id"`
		Chunks     int    `json:"chunks"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.DocumentID != "doc-123" {
		t.Errorf("document_id = %q, want doc-123", result.DocumentID)
	}
	if result.Chunks != 2 {
		t.Errorf("chunks = %d, want 2", result.Chunks)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/documents" {
		t.Errorf("request = %s %s, want POST /documents", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["owner"] != "default" {
		t.Errorf("body.owner = %v, want default", body["owner"])
	}
}

func TestClient_Ask(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /questions": `{"answer":"The sky is blue."}`,
	})

	resp, err := ts.client().post(ctx, "/questions", map[string]any{
		"owner":    "default",
		"question": "What color is the sky?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Answer != "The sky is blue." {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestClient_ListDocuments(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /documents": `{"documents":[{"id":"doc-123","title":"Sky","chunk_count":1,"created_at":"2026-01-02T15:04:05Z"}]}`,
	})

	resp, err := ts.client().get(ctx, "/documents?owner=default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Documents []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"documents"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(result.Documents) != 1 || result.Documents[0].Title != "Sky" {
		t.Errorf("unexpected documents: %+v", result.Documents)
	}

	if got := ts.requests[0].Path; got != "/documents?owner=default" {
		t.Errorf("path = %q, want /documents?owner=default", got)
	}
}

func TestClient_DeleteDocument(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /documents/doc-123": `{"deleted":"doc-123","chunks_removed":3}`,
	})

	resp, err := ts.client().delete(ctx, "/documents/doc-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Deleted       string `json:"deleted"`
		ChunksRemoved int    `json:"chunks_removed"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.ChunksRemoved != 3 {
		t.Errorf("chunks_removed = %d, want 3", result.ChunksRemoved)
	}
}

func TestDecodeJSON_ServerError(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/documents")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]any
	if err := decodeJSON(resp, &out); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
