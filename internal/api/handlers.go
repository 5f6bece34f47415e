// Package api exposes the ingestion and question-answering pipeline over
// HTTP and MCP.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aigist/aigist/internal/crawler"
	"github.com/aigist/aigist/internal/extract"
	"github.com/aigist/aigist/internal/qa"
	"github.com/aigist/aigist/internal/retrieval"
	"github.com/aigist/aigist/internal/storage"
	"github.com/aigist/aigist/internal/summarize"
)

const maxRequestBodySize = 10 << 20 // 10MB

// AppDeps holds dependencies for the HTTP handlers.
type AppDeps struct {
	Agent      *qa.Agent
	Summarizer *summarize.Summarizer
	Crawler    *crawler.Crawler
	Registry   *storage.Store
	Vectors    *retrieval.Store
	Token      string
}

// NewAppHandler builds the application router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	// Health stays open so the CLI can probe a running server without a
	// token.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/documents", handleAddDocument(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
		r.Post("/questions", handleAskQuestion(deps))
		r.Post("/summaries", handleSummarize(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

// AddDocumentRequest ingests content as raw text, a base64-encoded file, or
// a URL to fetch.
type AddDocumentRequest struct {
	Owner    string `json:"owner"`
	Title    string `json:"title"`
	Type     string `json:"type"` // "text" (default), "file", or "url"
	Content  string `json:"content"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func handleAddDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AddDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Owner == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner is required")
			return
		}

		text, title, err := resolveContent(r.Context(), deps, req)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		result, err := deps.Agent.AddDocument(r.Context(), text, title, req.Owner)
		switch {
		case errors.Is(err, qa.ErrValidation):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusBadGateway, "api_error", "adding document failed: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, result)
	}
}

// resolveContent turns the request into raw text based on its type.
func resolveContent(ctx context.Context, deps AppDeps, req AddDocumentRequest) (text, title string, err error) {
	switch req.Type {
	case "url":
		if req.URL == "" {
			return "", "", fmt.Errorf("url is required for type %q", req.Type)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		page, err := deps.Crawler.Fetch(fetchCtx, req.URL)
		if err != nil {
			return "", "", err
		}
		title = req.Title
		if title == "" {
			title = page.Title
		}
		if title == "" {
			title = req.URL
		}
		return page.Text, title, nil

	case "file":
		if req.Content == "" {
			return "", "", fmt.Errorf("content is required for type %q", req.Type)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return "", "", fmt.Errorf("invalid base64 content")
		}
		text, err := extract.Bytes(decoded, req.Filename)
		if err != nil {
			return "", "", err
		}
		title = req.Title
		if title == "" {
			title = req.Filename
		}
		return text, title, nil

	default:
		if req.Content == "" {
			return "", "", fmt.Errorf("content is required")
		}
		return req.Content, req.Title, nil
	}
}

// DocumentSummary is one entry in the document list response.
type DocumentSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner query parameter is required")
			return
		}

		docs, err := deps.Registry.ListDocuments(owner)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing documents failed: %v", err)
			return
		}

		out := make([]DocumentSummary, len(docs))
		for i, d := range docs {
			out[i] = DocumentSummary{
				ID:         d.ID,
				Title:      d.Title,
				ChunkCount: d.ChunkCount,
				CreatedAt:  d.CreatedAt,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		removed, err := deps.Agent.DeleteDocument(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "deleting document failed: %v", err)
			return
		}
		if removed == 0 {
			httpError(w, http.StatusNotFound, "not_found_error", "document %s not found", id)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "chunks_removed": removed})
	}
}

// AskRequest is a question scoped to an owner's documents.
type AskRequest struct {
	Owner    string `json:"owner"`
	Question string `json:"question"`
}

func handleAskQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Owner == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "owner is required")
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		// AnswerQuestion resolves every failure to a message, so this
		// path always returns 200 with an answer body.
		answer := deps.Agent.AnswerQuestion(r.Context(), req.Question, req.Owner)
		writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
	}
}

// SummarizeRequest asks for a summary of raw text at a detail level.
type SummarizeRequest struct {
	Text  string `json:"text"`
	Level string `json:"level"`
}

func handleSummarize(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SummarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		summary, err := deps.Summarizer.Summarize(r.Context(), req.Text, summarize.ParseLevel(req.Level))
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "summarization failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "level": summarize.ParseLevel(req.Level)})
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Vectors.Stats())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
