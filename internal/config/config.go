package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address         string `yaml:"address"`         // 监听地址 (例如: ":8080")
	BasePath        string `yaml:"basePath"`        // API 路由前缀 (例如: "/api/v1")
	ShutdownTimeout string `yaml:"shutdownTimeout"` // 优雅停机超时 (例如: "10s")
}

// AuthConfig 用于配置认证方法和相关设置。
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`   // 是否启用 Bearer 认证
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
	TokenTTL  int    `yaml:"tokenTTL"`  // JWT 令牌的有效期（秒）
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// LLMConfig 包含了不同LLM提供商的配置。
type LLMConfig struct {
	Provider    string               `yaml:"provider" validate:"omitempty,oneof=ollama openai huggingface gemini"` // LLM提供商
	Timeout     string               `yaml:"timeout"`     // 单次生成调用的超时 (例如: "120s")
	Ollama      OllamaLLMConfig      `yaml:"ollama"`      // Ollama 模型配置
	OpenAI      OpenAILLMConfig      `yaml:"openai"`      // OpenAI 模型配置
	HuggingFace HuggingFaceLLMConfig `yaml:"huggingface"` // Hugging Face 模型配置
	Gemini      GeminiConfig         `yaml:"gemini"`      // Gemini 模型配置
}

// OllamaLLMConfig 包含了本地 Ollama 模型的配置。
type OllamaLLMConfig struct {
	Model       string  `yaml:"model"`       // 模型名称 (例如: "mistral:7b-instruct")
	BaseURL     string  `yaml:"baseURL"`     // Ollama 服务地址，为空时使用默认地址
	Temperature float64 `yaml:"temperature"` // 采样温度
}

// OpenAILLMConfig 包含了 OpenAI 兼容服务的配置。
type OpenAILLMConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务地址，为空时使用官方地址
}

// HuggingFaceLLMConfig 包含了 Hugging Face Inference API 的配置。
type HuggingFaceLLMConfig struct {
	APIKey  string `yaml:"apiKey"`  // API 密钥
	Model   string `yaml:"model"`   // 模型名称
	BaseURL string `yaml:"baseURL"` // 服务地址，为空时使用官方地址
}

// GeminiConfig 包含了 Gemini 模型的配置。
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"` // Gemini API 密钥
	Model  string `yaml:"model"`  // Gemini 模型名称
}

// EmbeddingCacheConfig 定义了文本向量缓存的配置。
type EmbeddingCacheConfig struct {
	Capacity int    `yaml:"capacity"` // 进程内 LRU 缓存容量（条目数），0 表示禁用缓存
	TTL      string `yaml:"ttl"`      // Redis 二级缓存的过期时间 (例如: "168h")
	UseRedis bool   `yaml:"useRedis"` // 是否启用 Redis 二级缓存
}

// TextEmbeddingConfig 定义了文本向量模型的配置。
type TextEmbeddingConfig struct {
	Provider   string               `yaml:"provider" validate:"omitempty,oneof=ollama openai huggingface gemini"` // 提供商
	Model      string               `yaml:"model"`      // 模型名称 (例如: "all-minilm")
	APIKey     string               `yaml:"apiKey"`     // API 密钥
	BaseURL    string               `yaml:"baseURL"`    // 服务地址
	Dimensions int                  `yaml:"dimensions"` // 向量维度
	Cache      EmbeddingCacheConfig `yaml:"cache"`      // 向量缓存配置
}

// ImageEmbeddingConfig 定义了图像向量模型的配置。
// 图像与文本查询共享同一向量空间（双塔模型）。
type ImageEmbeddingConfig struct {
	Model      string `yaml:"model"`      // 模型名称 (例如: "sentence-transformers/clip-ViT-B-32")
	APIKey     string `yaml:"apiKey"`     // API 密钥
	BaseURL    string `yaml:"baseURL"`    // 推理服务地址
	Dimensions int    `yaml:"dimensions"` // 向量维度
}

// AudioEmbeddingConfig 定义了音频转写与向量化的配置。
// 转写走 Whisper，向量化复用文本向量模型。
type AudioEmbeddingConfig struct {
	Model         string  `yaml:"model"`         // 转写模型名称 (例如: "whisper-1")
	APIKey        string  `yaml:"apiKey"`        // API 密钥
	BaseURL       string  `yaml:"baseURL"`       // 服务地址
	MinSegmentSec float64 `yaml:"minSegmentSec"` // 过短分段的合并阈值（秒）
}

// EmbeddingConfig 按模态划分向量模型配置。
type EmbeddingConfig struct {
	Text  TextEmbeddingConfig  `yaml:"text"`  // 文本向量模型
	Image ImageEmbeddingConfig `yaml:"image"` // 图像向量模型
	Audio AudioEmbeddingConfig `yaml:"audio"` // 音频转写与向量模型
}

// IngestionConfig 定义了文档摄取的并发与投递配置。
type IngestionConfig struct {
	Workers   int    `yaml:"workers"`   // 嵌入与写索引的工作协程数
	BatchSize int    `yaml:"batchSize"` // 单次嵌入调用的批大小
	Async     bool   `yaml:"async"`     // true 时通过 Kafka 异步摄取
	Topic     string `yaml:"topic"`     // 摄取任务主题 (例如: "muninn.ingestion.jobs")
	GroupID   string `yaml:"groupID"`   // 消费者组 ID
}

// RAGConfig 定义了检索增强生成引擎的核心参数。
type RAGConfig struct {
	ChunkSize        int             `yaml:"chunkSize" validate:"omitempty,gt=0"`        // 文本分块大小（token 数）
	ChunkOverlap     int             `yaml:"chunkOverlap" validate:"omitempty,gte=0"`    // 相邻分块的重叠（token 数）
	TopK             int             `yaml:"topK" validate:"omitempty,gt=0"`             // 默认返回的候选数
	MaxContextTokens int             `yaml:"maxContextTokens" validate:"omitempty,gt=0"` // 上下文 token 预算
	IndexBackend     string          `yaml:"indexBackend" validate:"omitempty,oneof=memory milvus"` // 向量索引后端
	DataDir          string          `yaml:"dataDir"`   // memory 后端的索引快照目录
	Ingestion        IngestionConfig `yaml:"ingestion"` // 摄取配置
}

// MilvusConfig 定义了 Milvus 数据库的连接配置。
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus 服务地址
	Collection string `yaml:"collection"` // 集合名前缀，按模态展开 (例如: "muninn_chunks")
	IndexType  string `yaml:"indexType"`  // 索引类型 (例如: "HNSW", "IVF_FLAT")
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时自动创建的主题列表
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Mongo  MongoConfig  `yaml:"mongo"`  // MongoDB 数据库配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // 支持: "fixedWindow", "slidingLog", "slidingCounter", "leakyBucket", "tokenBucket"
	FixedWindow    FixedWindowConfig    `yaml:"fixedWindow"`
	SlidingLog     SlidingLogConfig     `yaml:"slidingLog"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
	LeakyBucket    LeakyBucketConfig    `yaml:"leakyBucket"`
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// SlidingLogConfig 定义了滑动窗口日志算法的配置。
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// SlidingCounterConfig 定义了滑动窗口计数器算法的配置。
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"`
	NumBuckets int    `yaml:"numBuckets"`
}

// LeakyBucketConfig 定义了漏桶算法的配置。
type LeakyBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Auth       AuthConfig       `yaml:"auth"`       // 认证配置
	LLM        LLMConfig        `yaml:"llm"`        // LLM 配置部分
	Embedding  EmbeddingConfig  `yaml:"embedding"`  // Embedding 配置部分
	RAG        RAGConfig        `yaml:"rag"`        // 检索引擎配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// 未在配置文件中给出时使用的默认值。
const (
	DefaultChunkSize        = 512
	DefaultChunkOverlap     = 50
	DefaultTopK             = 5
	DefaultMaxContextTokens = 2048
	DefaultIngestionWorkers = 4
	DefaultIngestionBatch   = 32
	DefaultIngestionTopic   = "muninn.ingestion.jobs"
	DefaultIngestionGroup   = "muninn-ingestion"
	DefaultTextDimensions   = 384
	DefaultImageDimensions  = 512
	DefaultLLMTimeout       = 120 * time.Second
)

// applyDefaults 为缺省的关键配置项填入默认值，使最小配置文件即可启动。
func (cfg *AppConfig) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/api/v1"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.MaxContextTokens == 0 {
		cfg.RAG.MaxContextTokens = DefaultMaxContextTokens
	}
	if cfg.RAG.IndexBackend == "" {
		cfg.RAG.IndexBackend = "memory"
	}
	if cfg.RAG.DataDir == "" {
		cfg.RAG.DataDir = "data"
	}
	if cfg.RAG.Ingestion.Workers == 0 {
		cfg.RAG.Ingestion.Workers = DefaultIngestionWorkers
	}
	if cfg.RAG.Ingestion.BatchSize == 0 {
		cfg.RAG.Ingestion.BatchSize = DefaultIngestionBatch
	}
	if cfg.RAG.Ingestion.Topic == "" {
		cfg.RAG.Ingestion.Topic = DefaultIngestionTopic
	}
	if cfg.RAG.Ingestion.GroupID == "" {
		cfg.RAG.Ingestion.GroupID = DefaultIngestionGroup
	}
	if cfg.Embedding.Text.Dimensions == 0 {
		cfg.Embedding.Text.Dimensions = DefaultTextDimensions
	}
	if cfg.Embedding.Image.Dimensions == 0 {
		cfg.Embedding.Image.Dimensions = DefaultImageDimensions
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Ollama.Model == "" {
		cfg.LLM.Ollama.Model = "mistral:7b-instruct"
	}
	if cfg.LLM.Ollama.Temperature == 0 {
		cfg.LLM.Ollama.Temperature = 0.7
	}
}

// LLMTimeout 解析生成调用的超时配置，非法或缺省时回退到默认值。
func (cfg *AppConfig) LLMTimeout() time.Duration {
	if cfg.LLM.Timeout == "" {
		return DefaultLLMTimeout
	}
	d, err := time.ParseDuration(cfg.LLM.Timeout)
	if err != nil || d <= 0 {
		return DefaultLLMTimeout
	}
	return d
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	// 读取 YAML 文件内容。
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig // 声明一个AppConfig变量用于存储解析后的配置。
	// 将 YAML 内容解析到 cfg 结构体中。
	err = yaml.Unmarshal(yamlFile, &cfg)
	if err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}

	cfg.applyDefaults()

	// 校验关键字段的取值范围。
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	if cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return nil, fmt.Errorf("配置校验失败: chunkOverlap (%d) 必须小于 chunkSize (%d)", cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	return &cfg, nil
}
