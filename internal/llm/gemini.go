package llm

import (
	"Muninn/internal/models"
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini 是一个用于 Gemini API 的 LLM 客户端。
// 单个实例会被所有请求共享，因此每次调用都是无状态的单轮生成，
// 对话上下文由调用方在请求中完整给出。
type Gemini struct {
	model *genai.GenerativeModel
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		model: client.GenerativeModel(model),
	}, nil
}

// GenerateContent 使用 Gemini API 生成内容。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	resp, err := g.model.GenerateContent(ctx, toGenaiParts(req.Content)...)
	if err != nil {
		return nil, err
	}

	return fromGenaiResponse(resp), nil
}

// GenerateContentStream 使用 Gemini API 以流式方式生成内容。
func (g *Gemini) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	iter := g.model.GenerateContentStream(ctx, toGenaiParts(req.Content)...)

	ch := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				return
			}
			ch <- fromGenaiResponse(resp)
		}
	}()

	return ch, nil
}

// toGenaiParts 将内部 Content 转换为 GenAI Part 切片。
// FunctionCall、ExecutableCode 等类型只会出现在模型的回复里，
// 客户端发出的请求中只需要处理文本、内联数据、文件引用和函数结果。
func toGenaiParts(content []models.Content) []genai.Part {
	var parts []genai.Part
	for _, c := range content {
		for _, p := range c.Parts {
			if p.Text != "" {
				parts = append(parts, genai.Text(p.Text))
			} else if p.InlineData != nil {
				parts = append(parts, genai.Blob{
					MIMEType: p.InlineData.MIMEType,
					Data:     p.InlineData.Data,
				})
			} else if p.FileData != nil {
				parts = append(parts, genai.FileData{
					MIMEType: p.FileData.MIMEType,
					URI:      p.FileData.FileURI,
				})
			} else if p.FunctionResponse != nil {
				parts = append(parts, genai.FunctionResponse{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				})
			}
		}
	}
	return parts
}

// fromGenaiResponse 将 GenAI 响应转换为我们的内部格式。
func fromGenaiResponse(resp *genai.GenerateContentResponse) *models.GenerateContentResponse {
	if resp == nil {
		return nil
	}
	var content []models.Content
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			content = append(content, fromGenaiContent(cand.Content))
		}
	}
	return &models.GenerateContentResponse{
		Content: content,
	}
}

// fromGenaiContent 将 GenAI Content 转换为内部 Content。
func fromGenaiContent(content *genai.Content) models.Content {
	var parts []*models.Part
	for _, p := range content.Parts {
		parts = append(parts, fromGenaiPart(p))
	}
	return models.Content{
		Parts: parts,
		Role:  models.SpeakerRole(content.Role),
	}
}

// fromGenaiPart 按具体类型将 GenAI Part 转换为内部 Part。
func fromGenaiPart(part genai.Part) *models.Part {
	switch v := part.(type) {
	case genai.Text:
		return &models.Part{Text: string(v)}
	case genai.Blob:
		return &models.Part{
			InlineData: &models.Blob{
				MIMEType: v.MIMEType,
				Data:     v.Data,
			},
		}
	case genai.FileData:
		return &models.Part{
			FileData: &models.FileData{
				FileURI:  v.URI,
				MIMEType: v.MIMEType,
			},
		}
	case genai.CodeExecutionResult:
		return &models.Part{
			CodeExecutionResult: &models.CodeExecutionResult{
				Outcome: models.Outcome(v.Outcome),
				Output:  v.Output,
			},
		}
	case genai.ExecutableCode:
		return &models.Part{
			ExecutableCode: &models.ExecutableCode{
				Code:     v.Code,
				Language: models.Language(v.Language),
			},
		}
	case genai.FunctionCall:
		return &models.Part{
			FunctionCall: &models.FunctionCall{
				Name: v.Name,
				Args: v.Args,
			},
		}
	case genai.FunctionResponse:
		return &models.Part{
			FunctionResponse: &models.FunctionResponse{
				Name:     v.Name,
				Response: v.Response,
			},
		}
	default:
		return &models.Part{Text: fmt.Sprintf("%v", v)}
	}
}

var _ LLM = (*Gemini)(nil)
