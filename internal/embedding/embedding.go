package embedding

import (
	"fmt"
)

// NewEmdModel 根据提供商名称创建对应的 Embedding 模型客户端。
//
// 参数:
//
//	provider: 提供商名称 ("gemini", "openai", "huggingface", "ollama")。
//	model: 要使用的模型名称。
//	apiKey: API 密钥，本地服务可以留空。
//	baseURL: 服务地址，为空时使用各提供商的默认地址。
//
// 返回值:
//
//	Embedding: 新创建的模型客户端。
//	error: 如果提供商不支持或初始化失败，则返回错误。
func NewEmdModel(provider, model, apiKey, baseURL string) (Embedding, error) {
	switch provider {
	case "gemini":
		return NewGoogleModel(apiKey, model)
	case "openai":
		return NewOpenAIModel(apiKey, model, baseURL)
	case "huggingface":
		return NewHuggingFaceModel(apiKey, model, baseURL)
	case "ollama":
		return NewOllamaModel(model, baseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
