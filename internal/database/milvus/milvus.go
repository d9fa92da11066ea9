package milvus

import (
	"Muninn/internal/config"
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 持有 Milvus 客户端实例和相关配置。
// 集合的创建和索引管理由各模态的向量存储自行负责，这里只维护连接。
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例，
// 连接在整个应用生命周期中只建立一次。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}

// HealthCheck 通过列出集合检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("Milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("Milvus health check failed: %w", err)
	}
	return nil
}
