package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

// countingModel 记录每个文本被真正嵌入的次数。
type countingModel struct {
	dim   int
	calls map[string]int
	fail  bool
}

func newCountingModel(dim int) *countingModel {
	return &countingModel{dim: dim, calls: make(map[string]int)}
}

func (c *countingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.fail {
		return nil, fmt.Errorf("model down")
	}
	c.calls[text]++
	v := make([]float32, c.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (c *countingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestCachedModelAvoidsRepeatCalls(t *testing.T) {
	inner := newCountingModel(4)
	m, err := NewCachedModel(inner, "test-model", 16, nil, 0, "")
	if err != nil {
		t.Fatalf("NewCachedModel failed: %v", err)
	}
	ctx := context.Background()

	first, err := m.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := m.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls["hello"] != 1 {
		t.Errorf("expected one model call, got %d", inner.calls["hello"])
	}
	if first[0] != second[0] || len(first) != len(second) {
		t.Error("cached vector differs from original")
	}
}

func TestCachedModelBatchOnlyEmbedsMisses(t *testing.T) {
	inner := newCountingModel(4)
	m, err := NewCachedModel(inner, "test-model", 16, nil, 0, "")
	if err != nil {
		t.Fatalf("NewCachedModel failed: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Embed(ctx, "warm"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	out, err := m.EmbedBatch(ctx, []string{"cold one", "warm", "cold two"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(out))
	}
	// 顺序必须与输入一致：向量首分量编码了文本长度。
	for i, text := range []string{"cold one", "warm", "cold two"} {
		if out[i][0] != float32(len(text)) {
			t.Errorf("vector %d does not match input %q", i, text)
		}
	}
	if inner.calls["warm"] != 1 {
		t.Errorf("cached text re-embedded: %d calls", inner.calls["warm"])
	}
	if inner.calls["cold one"] != 1 || inner.calls["cold two"] != 1 {
		t.Errorf("miss texts should be embedded exactly once: %v", inner.calls)
	}
}

func TestCachedModelDistinctModelsDistinctKeys(t *testing.T) {
	innerA := newCountingModel(4)
	innerB := newCountingModel(4)
	a, _ := NewCachedModel(innerA, "model-a", 16, nil, 0, "")
	b, _ := NewCachedModel(innerB, "model-b", 16, nil, 0, "")
	ctx := context.Background()

	if _, err := a.Embed(ctx, "shared"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if _, err := b.Embed(ctx, "shared"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if innerB.calls["shared"] != 1 {
		t.Error("second model must not see the first model's cache")
	}
}

func TestCachedModelFailurePassesThrough(t *testing.T) {
	inner := newCountingModel(4)
	inner.fail = true
	m, _ := NewCachedModel(inner, "test-model", 16, nil, 0, "")

	if _, err := m.Embed(context.Background(), "x"); err == nil {
		t.Error("expected model failure to surface")
	}
	if _, err := m.EmbedBatch(context.Background(), []string{"x", "y"}); err == nil {
		t.Error("expected batch failure to surface")
	}
}

func TestCachedModelSeenSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.bloom")
	ctx := context.Background()

	m, err := NewCachedModel(newCountingModel(4), "test-model", 16, nil, 0, path)
	if err != nil {
		t.Fatalf("NewCachedModel failed: %v", err)
	}
	if _, err := m.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// 重启后的实例必须记得之前缓存过的键，否则 Redis 命中永远不会发生。
	m2, err := NewCachedModel(newCountingModel(4), "test-model", 16, nil, 0, path)
	if err != nil {
		t.Fatalf("NewCachedModel failed: %v", err)
	}
	if !m2.seen.Test([]byte(m2.cacheKey("hello"))) {
		t.Error("restored filter forgot a cached key")
	}

	noPersist, _ := NewCachedModel(newCountingModel(4), "test-model", 16, nil, 0, "")
	if err := noPersist.Close(); err != nil {
		t.Errorf("Close without a snapshot path should be a no-op, got %v", err)
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatalf("decodeVector failed: %v", err)
	}
	if len(decoded) != len(v) {
		t.Fatalf("length mismatch: %d vs %d", len(decoded), len(v))
	}
	for i := range v {
		if decoded[i] != v[i] {
			t.Errorf("component %d: %v != %v", i, decoded[i], v[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated encoding")
	}
}
