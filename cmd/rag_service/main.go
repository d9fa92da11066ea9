package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/sirupsen/logrus"

	"Muninn/internal/config"
	kafkadb "Muninn/internal/database/kafka"
	milvusdb "Muninn/internal/database/milvus"
	miniodb "Muninn/internal/database/minio"
	mongodb "Muninn/internal/database/mongo"
	mysqldb "Muninn/internal/database/mysql"
	redisdb "Muninn/internal/database/redis"
	"Muninn/internal/embedding"
	"Muninn/internal/llm"
	"Muninn/internal/rag/citations"
	"Muninn/internal/rag/embeddings"
	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/llms"
	"Muninn/internal/rag/pipeline"
	"Muninn/internal/rag/rerankers"
	"Muninn/internal/rag/schema"
	"Muninn/internal/rag/splitters"
	"Muninn/internal/rag/storages/docstore"
	"Muninn/internal/rag/storages/vectorstore"
	"Muninn/internal/rag_service/api"
	"Muninn/internal/rag_service/consumer"
	"Muninn/internal/rag_service/dal"
	"Muninn/internal/rag_service/publisher"
	"Muninn/internal/rag_service/service"
	"Muninn/internal/rag_service/store"
	httpserver "Muninn/pkg/http"
	"Muninn/pkg/logger"
)

// chunkCollection is the MongoDB collection holding chunk content.
const chunkCollection = "chunks"

// defaultCacheTTL is the Redis embedding cache expiry when the config
// leaves it unset.
const defaultCacheTTL = 168 * time.Hour

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New(cfg.App.Name, "", "")
	appLogger.Info(fmt.Sprintf("Starting %s %s (%s)...", cfg.App.Name, cfg.App.Version, cfg.App.Environment))

	ctx := context.Background()

	// 3. Connect databases
	db, err := mysqldb.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	docDAL, err := dal.NewDocumentDAL(db)
	if err != nil {
		log.Fatalf("Failed to prepare document table: %v", err)
	}

	mongoClient, err := mongodb.GetClient(&cfg.Databases.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	chunkStore := docstore.NewMongoChunkStore(mongoClient.Database(cfg.Databases.Mongo.Database), chunkCollection)

	minioClient, err := miniodb.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}
	objects, err := store.NewObjectStore(ctx, minioClient, cfg.Databases.MinIO.Bucket, appLogger)
	if err != nil {
		log.Fatalf("Failed to prepare object store: %v", err)
	}

	// 4. Vector indexes, per modality
	var milvusClient *milvusdb.MilvusClient
	if cfg.RAG.IndexBackend == "milvus" {
		milvusClient, err = milvusdb.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			log.Fatalf("Failed to connect to Milvus: %v", err)
		}
	}
	indexes, err := buildIndexes(cfg, milvusClient, appLogger)
	if err != nil {
		log.Fatalf("Failed to build vector indexes: %v", err)
	}

	// 5. Embedders: text model (optionally cached), CLIP, Whisper
	textModel, err := embedding.NewEmdModel(
		cfg.Embedding.Text.Provider,
		cfg.Embedding.Text.Model,
		cfg.Embedding.Text.APIKey,
		cfg.Embedding.Text.BaseURL,
	)
	if err != nil {
		log.Fatalf("Failed to create text embedding model: %v", err)
	}

	var redisUsed bool
	var cachedModel *embedding.CachedModel
	if cacheCfg := cfg.Embedding.Text.Cache; cacheCfg.Capacity > 0 {
		var rdb *goredis.Client
		if cacheCfg.UseRedis {
			rdb, err = redisdb.GetClient(&cfg.Databases.Redis)
			if err != nil {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			redisUsed = true
		}
		ttl := defaultCacheTTL
		if d, perr := time.ParseDuration(cacheCfg.TTL); perr == nil && d > 0 {
			ttl = d
		}
		seenPath := filepath.Join(cfg.RAG.DataDir, "emb_seen.bloom")
		cachedModel, err = embedding.NewCachedModel(textModel, cfg.Embedding.Text.Model, cacheCfg.Capacity, rdb, ttl, seenPath)
		if err != nil {
			log.Fatalf("Failed to wrap embedding cache: %v", err)
		}
		textModel = cachedModel
	}
	textEmbedder := embeddings.NewTextAdapter(textModel, cfg.Embedding.Text.Dimensions)

	imageEmbedder := embeddings.NewClipAdapter(
		cfg.Embedding.Image.Model,
		cfg.Embedding.Image.APIKey,
		cfg.Embedding.Image.BaseURL,
		cfg.Embedding.Image.Dimensions,
	)

	whisperCfg := openai.DefaultConfig(cfg.Embedding.Audio.APIKey)
	if cfg.Embedding.Audio.BaseURL != "" {
		whisperCfg.BaseURL = cfg.Embedding.Audio.BaseURL
	}
	audioEmbedder := embeddings.NewWhisperAdapter(
		openai.NewClientWithConfig(whisperCfg),
		cfg.Embedding.Audio.Model,
		textModel,
		cfg.Embedding.Text.Dimensions,
		cfg.Embedding.Audio.MinSegmentSec,
	)

	// 6. Answer generation
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	generator := llms.NewGenerator(llmClient)

	// 7. Pipelines
	splitter, err := splitters.NewTokenSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create splitter: %v", err)
	}
	indexing := pipeline.NewIndexingPipeline(splitter, textEmbedder, imageEmbedder, audioEmbedder,
		chunkStore, indexes, appLogger, cfg.RAG.Ingestion.Workers)
	retrieval := pipeline.NewRetrievalPipeline(textEmbedder, imageEmbedder, audioEmbedder,
		indexes, chunkStore, docDAL, rerankers.NewModalityFuser(), appLogger)
	assembler, err := pipeline.NewContextAssembler(cfg.RAG.MaxContextTokens)
	if err != nil {
		log.Fatalf("Failed to create context assembler: %v", err)
	}
	qa := pipeline.NewQAPipeline(generator, cfg.LLMTimeout(), appLogger)
	suggestions := pipeline.NewSuggestionsPipeline(generator, chunkStore, appLogger)
	binder := citations.NewBinder(objects.ResolveURL)

	// 8. Optional Kafka-backed ingestion queue
	var (
		queue              service.JobQueue
		kafkaClient        *kafkadb.KafkaClient
		ingestionPublisher *publisher.IngestionPublisher
	)
	if cfg.RAG.Ingestion.Async {
		ensureTopic(&cfg.Databases.Kafka, cfg.RAG.Ingestion.Topic)
		kafkaClient, err = kafkadb.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			log.Fatalf("Failed to connect to Kafka: %v", err)
		}
		ingestionPublisher = publisher.NewIngestionPublisher(kafkaClient, cfg.RAG.Ingestion.Topic)
		queue = ingestionPublisher
	}

	// 9. Orchestration service
	svc := service.New(service.Deps{
		Documents: docDAL,
		Chunks:    chunkStore,
		Objects:   objects,
		Indexing:  indexing,
		Retrieval: retrieval,
		Assembler: assembler,
		QA:        qa,
		Suggest:   suggestions,
		Binder:    binder,
		Queue:     queue,
		TopK:      cfg.RAG.TopK,
		Log:       appLogger,
	})

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	var ingestionConsumer *consumer.IngestionConsumer
	if cfg.RAG.Ingestion.Async {
		ingestionConsumer = consumer.NewIngestionConsumer(cfg.Databases.Kafka.Brokers,
			cfg.RAG.Ingestion.Topic, cfg.RAG.Ingestion.GroupID, svc, appLogger)
		ingestionConsumer.Start(consumerCtx)
		appLogger.Info(fmt.Sprintf("Ingestion consumer started on topic %s", cfg.RAG.Ingestion.Topic))
	}

	// 10. Health checks for /health
	health := map[string]api.HealthCheck{
		"mysql": mysqldb.HealthCheck,
		"mongo": mongodb.HealthCheck,
		"minio": miniodb.HealthCheck,
	}
	if redisUsed {
		health["redis"] = redisdb.HealthCheck
	}
	if kafkaClient != nil {
		health["kafka"] = kafkaClient.HealthCheck
	}
	if milvusClient != nil {
		health["milvus"] = milvusClient.HealthCheck
	}

	// 11. HTTP server with the configured middleware chain
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.RegisterRoutes(router, api.NewAPI(svc, appLogger, health), cfg)

	srv, err := httpserver.NewServer(cfg, httpserver.WithAddress(cfg.Server.Address))
	if err != nil {
		log.Fatalf("Failed to create HTTP server: %v", err)
	}
	srv.Handle("/", router)

	go func() {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn(fmt.Sprintf("HTTP shutdown did not finish cleanly: %v", err))
	}

	stopConsumer()
	if ingestionConsumer != nil {
		if err := ingestionConsumer.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not close ingestion consumer: %v", err))
		}
	}
	if ingestionPublisher != nil {
		if err := ingestionPublisher.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not close ingestion publisher: %v", err))
		}
	}
	if kafkaClient != nil {
		if err := kafkaClient.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not close kafka client: %v", err))
		}
	}

	for modality, idx := range indexes {
		if err := idx.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not close %s index: %v", modality, err))
		}
	}
	if milvusClient != nil {
		milvusClient.Close()
	}
	if cachedModel != nil {
		if err := cachedModel.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not persist embedding cache state: %v", err))
		}
	}

	if redisUsed {
		if err := redisdb.Close(); err != nil {
			appLogger.Warn(fmt.Sprintf("could not close redis: %v", err))
		}
	}
	if err := mongodb.Close(ctx); err != nil {
		appLogger.Warn(fmt.Sprintf("could not close mongo: %v", err))
	}
	if err := mysqldb.Close(); err != nil {
		appLogger.Warn(fmt.Sprintf("could not close mysql: %v", err))
	}
	miniodb.Close()

	appLogger.Info("Server gracefully stopped")
}

// buildIndexes creates one vector index per modality on the configured
// backend. Memory indexes snapshot under the data directory; Milvus
// indexes expand the collection prefix per modality. The audio index uses
// the text dimension because transcripts are embedded by the text model.
func buildIndexes(cfg *config.AppConfig, mc *milvusdb.MilvusClient, log *logger.Logger) (map[schema.Modality]interfaces.VectorIndex, error) {
	dims := map[schema.Modality]int{
		schema.ModalityText:  cfg.Embedding.Text.Dimensions,
		schema.ModalityImage: cfg.Embedding.Image.Dimensions,
		schema.ModalityAudio: cfg.Embedding.Text.Dimensions,
	}

	indexes := make(map[schema.Modality]interfaces.VectorIndex, len(dims))
	for modality, dim := range dims {
		if mc != nil {
			collection := fmt.Sprintf("%s_%s", cfg.Databases.Milvus.Collection, modality)
			idx, err := vectorstore.NewMilvusIndex(mc.Client, collection, dim, cfg.Databases.Milvus.IndexType, log)
			if err != nil {
				return nil, fmt.Errorf("milvus index for %s: %w", modality, err)
			}
			indexes[modality] = idx
			continue
		}

		path := filepath.Join(cfg.RAG.DataDir, fmt.Sprintf("%s.idx", modality))
		idx, err := vectorstore.NewMemoryIndex(dim, path)
		if err != nil {
			return nil, fmt.Errorf("memory index for %s: %w", modality, err)
		}
		indexes[modality] = idx
	}
	return indexes, nil
}

// ensureTopic adds the ingestion topic to the auto-created topic list.
func ensureTopic(cfg *config.KafkaConfig, topic string) {
	for _, t := range cfg.Topics {
		if t == topic {
			return
		}
	}
	cfg.Topics = append(cfg.Topics, topic)
}

// shutdownTimeout parses the configured graceful shutdown window.
func shutdownTimeout(cfg *config.AppConfig) time.Duration {
	if d, err := time.ParseDuration(cfg.Server.ShutdownTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}
