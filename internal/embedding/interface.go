package embedding

import "context"

// Embedding 是所有向量模型客户端的统一接口。
// 实现者负责把文本映射到固定维度的向量空间，
// 同一个实现的 Embed 与 EmbedBatch 必须产生一致的向量。
type Embedding interface {
	// Embed 为单个文本生成嵌入向量。
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch 为一批文本生成嵌入向量，结果与输入逐位对应。
	// 任何一个文本失败都会使整批失败。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
