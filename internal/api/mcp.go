package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aigist/aigist/internal/qa"
	"github.com/aigist/aigist/internal/retrieval"
)

// NewMCPServer creates an MCP server exposing the document Q&A tools.
func NewMCPServer(agent *qa.Agent, vectors *retrieval.Store) *server.MCPServer {
	s := server.NewMCPServer(
		"aigist",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("aigist is a document knowledge base with semantic search and grounded question answering. Use add_document to store text, ask_question to get a grounded answer, and search_documents for raw similarity matches."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Store a text document for later semantic retrieval."),
			mcp.WithString("owner", mcp.Description("Owner key scoping the document"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Document title")),
			mcp.WithString("content", mcp.Description("The document text"), mcp.Required()),
		),
		mcpAddDocument(agent),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Answer a question grounded in the owner's stored documents."),
			mcp.WithString("owner", mcp.Description("Owner key scoping the search"), mcp.Required()),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskQuestion(agent),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Semantically search the owner's stored chunks and return the raw matches as JSON."),
			mcp.WithString("owner", mcp.Description("Owner key scoping the search"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchDocuments(vectors),
	)

	return s
}

func mcpAddDocument(agent *qa.Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner")
		if err != nil {
			return mcpError("owner is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		title := req.GetString("title", "")

		res, err := agent.AddDocument(ctx, content, title, owner)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add document: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored document %s (%d chunks)", res.DocumentID, res.Chunks)), nil
	}
}

func mcpAskQuestion(agent *qa.Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner")
		if err != nil {
			return mcpError("owner is required"), nil
		}
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		return mcpText(agent.AnswerQuestion(ctx, question, owner)), nil
	}
}

// mcpSearchHit is the wire shape for one search_documents match.
type mcpSearchHit struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

func mcpSearchDocuments(vectors *retrieval.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		owner, err := req.RequireString("owner")
		if err != nil {
			return mcpError("owner is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		matches, err := vectors.Search(ctx, query, limit, 0, owner)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		hits := make([]mcpSearchHit, 0, len(matches))
		for _, m := range matches {
			hits = append(hits, mcpSearchHit{
				DocumentID: m.DocumentID,
				Title:      m.Title,
				ChunkIndex: m.ChunkIndex,
				Text:       m.Text,
				Score:      m.Score,
			})
		}

		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
