package embedding

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/blake2b"

	"Muninn/pkg/util"
)

// CachedModel 是一个 Embedding 装饰器，为底层模型增加两级缓存：
// 进程内 LRU 作为一级缓存，Redis 作为可选的二级缓存。
// 相同文本的重复嵌入请求不会再次调用模型。
// 布隆过滤器记录所有缓存过的键，未见过的键直接跳过缓存查询，
// 避免对 Redis 发起注定落空的请求。
// 过滤器可以持久化到磁盘，重启后 Redis 中尚未过期的向量仍然可见。
type CachedModel struct {
	inner Embedding
	model string // 缓存键的命名空间，不同模型的向量互不可见

	l1       *util.LRUCache[string, []float32]
	seen     *util.ScalableBloomFilter
	seenPath string // 过滤器快照路径，为空则不持久化
	rdb      *redis.Client // 可为 nil，此时只有一级缓存
	ttl      time.Duration
}

// NewCachedModel 包装一个底层模型并返回带缓存的实例。
//
// 参数:
//
//	inner: 被包装的 Embedding 模型。
//	modelName: 模型名称，参与缓存键的计算。
//	capacity: 一级缓存可容纳的向量数量。
//	rdb: Redis 客户端，传 nil 则不启用二级缓存。
//	ttl: 二级缓存条目的过期时间。
//	seenPath: 布隆过滤器的快照路径，传空字符串则不持久化。
//
// 返回值:
//
//	*CachedModel: 新创建的带缓存模型实例。
//	error: 如果缓存初始化失败，则返回错误。
func NewCachedModel(inner Embedding, modelName string, capacity int, rdb *redis.Client, ttl time.Duration, seenPath string) (*CachedModel, error) {
	l1, err := util.NewWithConfig(util.CacheConfig[string, []float32]{Capacity: capacity})
	if err != nil {
		return nil, fmt.Errorf("初始化一级缓存失败: %w", err)
	}
	seen, err := loadOrNewSeen(seenPath, capacity)
	if err != nil {
		return nil, fmt.Errorf("初始化布隆过滤器失败: %w", err)
	}
	return &CachedModel{
		inner:    inner,
		model:    modelName,
		l1:       l1,
		seen:     seen,
		seenPath: seenPath,
		rdb:      rdb,
		ttl:      ttl,
	}, nil
}

// loadOrNewSeen 尝试从快照恢复布隆过滤器，快照不存在或损坏时新建一个。
// 首次启动没有快照属于正常情况，不作为错误处理。
func loadOrNewSeen(path string, capacity int) (*util.ScalableBloomFilter, error) {
	if path != "" {
		if seen, err := util.NewScalableBloomFilterFromFile(path); err == nil {
			return seen, nil
		}
	}
	return util.NewScalableBloomFilter(util.SBFConfig{
		InitialCapacity:      uint(capacity),
		ErrorRate:            0.01,
		GrowthFactor:         2,
		ErrorTighteningRatio: 0.5,
	})
}

// Close 将布隆过滤器写入快照。未配置快照路径时为空操作。
func (m *CachedModel) Close() error {
	if m.seenPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.seenPath), 0o755); err != nil {
		return fmt.Errorf("创建快照目录失败: %w", err)
	}
	return m.seen.WriteToFile(m.seenPath)
}

// Embed 为单个文本生成嵌入向量，优先命中缓存。
func (m *CachedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	key := m.cacheKey(text)
	if v, ok := m.lookup(ctx, key); ok {
		return v, nil
	}

	v, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.store(ctx, key, v)
	return v, nil
}

// EmbedBatch 为一批文本生成嵌入向量。已缓存的文本直接取缓存，
// 只有未命中的文本才会发给底层模型，结果按输入顺序返回。
// 底层模型调用失败时整批失败，不返回部分结果。
func (m *CachedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missAt []int
	for i, text := range texts {
		key := m.cacheKey(text)
		if v, ok := m.lookup(ctx, key); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missAt = append(missAt, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := m.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("模型返回了 %d 个向量, 请求了 %d 个", len(vectors), len(missTexts))
	}
	for j, v := range vectors {
		at := missAt[j]
		out[at] = v
		m.store(ctx, m.cacheKey(texts[at]), v)
	}
	return out, nil
}

// cacheKey 计算文本的缓存键。键由模型名和文本内容共同决定，
// blake2b 保证不同文本不会落到同一个键上。
func (m *CachedModel) cacheKey(text string) string {
	sum := blake2b.Sum256([]byte(m.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// lookup 依次查询布隆过滤器、一级缓存和二级缓存。
func (m *CachedModel) lookup(ctx context.Context, key string) ([]float32, bool) {
	if !m.seen.Test([]byte(key)) {
		return nil, false
	}
	if v, ok := m.l1.Get(key); ok {
		return v, true
	}
	if m.rdb == nil {
		return nil, false
	}
	raw, err := m.rdb.Get(ctx, m.redisKey(key)).Bytes()
	if err != nil {
		// redis.Nil 表示未命中，其它错误一律按未命中处理，
		// 缓存故障不能影响嵌入流程。
		return nil, false
	}
	v, err := decodeVector(raw)
	if err != nil {
		return nil, false
	}
	m.l1.Put(key, v, len(v))
	return v, true
}

// store 将向量写入所有缓存层。
func (m *CachedModel) store(ctx context.Context, key string, v []float32) {
	m.l1.Put(key, v, len(v))
	m.seen.Add([]byte(key))
	if m.rdb != nil {
		m.rdb.Set(ctx, m.redisKey(key), encodeVector(v), m.ttl)
	}
}

func (m *CachedModel) redisKey(key string) string {
	return "emb:" + key
}

// encodeVector 将向量编码为小端 float32 字节序列，每个分量 4 字节。
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector 还原 encodeVector 的编码。
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("向量编码长度 %d 不是 4 的倍数", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// 编译时检查，确保 CachedModel 实现了 Embedding 接口
var _ Embedding = (*CachedModel)(nil)
