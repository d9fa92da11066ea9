package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"Muninn/internal/config"
	"Muninn/internal/models"
	httpclient "Muninn/pkg/http"
)

// Handler forwards tool calls to the retrieval service HTTP API.
type Handler struct {
	client  *httpclient.Client
	baseURL string
	token   string
}

// NewHandler creates a Handler targeting the API mounted at baseURL. An
// empty token skips the Authorization header.
func NewHandler(client *httpclient.Client, baseURL, token string) *Handler {
	return &Handler{client: client, baseURL: baseURL, token: token}
}

func (h *Handler) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

// --- Tool Handlers ---

func (h *Handler) HandleQueryCorpus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return nil, err
	}
	topK := int(req.GetFloat("top_k", 0))
	modalities := splitModalities(req.GetString("modalities", ""))

	var result models.QueryResponse
	payload := models.QueryRequest{Question: question, TopK: topK, Modalities: modalities}
	if err := h.post(ctx, "/query", payload, &result); err != nil {
		return errorResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	return textResult(formatAnswer(&result)), nil
}

func (h *Handler) HandleSearchChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return nil, err
	}
	modality := req.GetString("modality", "")
	topK := int(req.GetFloat("top_k", 0))

	var results []models.SearchResult
	payload := models.SearchRequest{Query: query, Modality: modality, TopK: topK}
	if err := h.post(ctx, "/search", payload, &results); err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}
	return textResult(formatSearch(results)), nil
}

// --- Result formatting ---

func formatAnswer(r *models.QueryResponse) string {
	var b strings.Builder
	b.WriteString(r.Answer)
	if len(r.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, c := range r.Citations {
			b.WriteString(fmt.Sprintf("[%d] %s (%s", c.ID, c.Source, c.Type))
			if c.Page != nil {
				b.WriteString(fmt.Sprintf(", page %d", *c.Page))
			}
			if c.StartTime != nil && c.EndTime != nil {
				b.WriteString(fmt.Sprintf(", %.1fs-%.1fs", *c.StartTime, *c.EndTime))
			}
			b.WriteString(")\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSearch(results []models.SearchResult) string {
	if len(results) == 0 {
		return "No matching chunks."
	}
	var b strings.Builder
	for i, r := range results {
		b.WriteString(fmt.Sprintf("%d. [%s] %s (score %.3f)\n%s\n\n", i+1, r.Modality, r.Filename, r.Similarity, r.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

func splitModalities(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "base URL of the retrieval service")
	basePath := flag.String("base-path", "/api/v1", "API route prefix of the retrieval service")
	token := flag.String("token", "", "bearer token, if the service requires auth")
	flag.Parse()

	client, err := httpclient.NewClient(config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          "30s",
	})
	if err != nil {
		log.Fatalf("failed to create HTTP client: %v", err)
	}
	h := NewHandler(client, strings.TrimRight(*addr, "/")+*basePath, *token)

	s := server.NewMCPServer("muninn-retrieval", "1.0.0")

	// --- Register Tools ---
	s.AddTool(mcp.NewTool("query_corpus",
		mcp.WithDescription("Answers a question over the ingested corpus, grounded in retrieved passages with numbered citations."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural-language question to answer.")),
		mcp.WithNumber("top_k", mcp.Description("How many passages to ground the answer on.")),
		mcp.WithString("modalities", mcp.Description("Comma-separated subset of text,image,audio. Empty searches all.")),
	), h.HandleQueryCorpus)

	s.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Returns ranked corpus chunks for a query without generating an answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text.")),
		mcp.WithString("modality", mcp.Description("Restrict to one of: text, image, audio.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of chunks to return.")),
	), h.HandleSearchChunks)

	log.Println("Starting retrieval MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v\n", err)
	}
}
