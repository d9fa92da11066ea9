package llm

import (
	"Muninn/internal/models"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端，
// 走 text-generation 管道。
type HuggingFace struct {
	client  *http.Client
	model   string
	apiKey  string
	baseURL string
}

// hfGenerated 是 Inference API text-generation 管道的单条返回。
type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。baseURL 为空时使用官方托管服务。
func NewHuggingFace(model, apiKey, baseURL string) (*HuggingFace, error) {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/"
	}
	return &HuggingFace{
		client:  &http.Client{Timeout: 120 * time.Second},
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

// GenerateContent 使用 Hugging Face Inference API 生成内容。
// wait_for_model 让托管端在模型冷启动时阻塞等待而不是直接报 503。
func (h *HuggingFace) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	hfReq := h.toHuggingFaceRequest(req)

	jsonReq, err := json.Marshal(hfReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewBuffer(jsonReq))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var hfResp []hfGenerated
	if err := json.NewDecoder(resp.Body).Decode(&hfResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(hfResp) == 0 {
		return nil, fmt.Errorf("no generated text returned")
	}

	return h.toGenerateContentResponse(hfResp), nil
}

// GenerateContentStream 尚未为 Hugging Face 实现，调用方应改用 GenerateContent。
func (h *HuggingFace) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	return nil, fmt.Errorf("streaming not yet implemented for Hugging Face")
}

// toHuggingFaceRequest 将我们的内部请求格式转换为 Hugging Face 格式。
// text-generation 管道只接受一段纯文本，所以把各个文本部分按行拼接。
func (h *HuggingFace) toHuggingFaceRequest(req *models.GenerateContentRequest) map[string]interface{} {
	var lines []string
	for _, content := range req.Content {
		for _, part := range content.Parts {
			if part.Text != "" {
				lines = append(lines, part.Text)
			}
		}
	}

	return map[string]interface{}{
		"inputs":  strings.Join(lines, "\n"),
		"options": map[string]bool{"wait_for_model": true},
	}
}

// toGenerateContentResponse 将 Hugging Face 响应转换为我们的内部格式。
func (h *HuggingFace) toGenerateContentResponse(resp []hfGenerated) *models.GenerateContentResponse {
	var content []models.Content
	for _, item := range resp {
		content = append(content, models.Content{
			Parts: []*models.Part{
				{Text: item.GeneratedText},
			},
			Role: models.SpeakerModel,
		})
	}

	return &models.GenerateContentResponse{
		Content: content,
	}
}

var _ LLM = (*HuggingFace)(nil)
