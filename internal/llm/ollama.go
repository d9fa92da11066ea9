package llm

import (
	"Muninn/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于本地 Ollama 服务的 LLM 客户端。
type Ollama struct {
	client      *olla.Client
	model       string
	temperature float64
}

// NewOllama 创建一个新的 Ollama 客户端。baseURL 为空时默认连接本地服务。
func NewOllama(model, baseURL string, temperature float64) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// 本地推理在冷启动时可能需要先加载模型，超时给得比远端 API 宽。
	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{
		client:      olla.NewClient(parsedURL, hc),
		model:       model,
		temperature: temperature,
	}, nil
}

// GenerateContent 使用 Ollama API 生成内容。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	prompt := o.toOllamaPrompt(req)

	stream := false
	var result *olla.GenerateResponse
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.options(),
	}, func(resp olla.GenerateResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("ollama returned no response")
	}

	return o.toGenerateContentResponse(result), nil
}

// GenerateContentStream 使用 Ollama API 以流式方式生成内容。
func (o *Ollama) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	prompt := o.toOllamaPrompt(req)
	respChan := make(chan *models.GenerateContentResponse)

	go func() {
		defer close(respChan)

		stream := true
		_ = o.client.Generate(ctx, &olla.GenerateRequest{
			Model:   o.model,
			Prompt:  prompt,
			Stream:  &stream,
			Options: o.options(),
		}, func(resp olla.GenerateResponse) error {
			respChan <- o.toGenerateContentResponse(&resp)
			return nil
		})
	}()

	return respChan, nil
}

// options 构建传递给 Ollama 的模型参数。
func (o *Ollama) options() map[string]any {
	return map[string]any{
		"temperature": o.temperature,
	}
}

// toOllamaPrompt 把请求里的文本部分按行拼接成一段提示词。
func (o *Ollama) toOllamaPrompt(req *models.GenerateContentRequest) string {
	var lines []string
	for _, content := range req.Content {
		for _, part := range content.Parts {
			if part.Text != "" {
				lines = append(lines, part.Text)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// toGenerateContentResponse 将 Ollama 响应转换为我们的内部格式。
func (o *Ollama) toGenerateContentResponse(resp *olla.GenerateResponse) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{
		Content: []models.Content{
			{
				Parts: []*models.Part{{Text: resp.Response}},
				Role:  models.SpeakerModel,
			},
		},
		ModelVersion: resp.Model,
	}
}

var _ LLM = (*Ollama)(nil)
