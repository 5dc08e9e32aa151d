package docchat

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/app"
	"github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/component/mongodb"
	"github.com/kart-io/docchat/pkg/llm"

	// 注册 LLM 供应商。
	_ "github.com/kart-io/docchat/pkg/llm/ollama"
	_ "github.com/kart-io/docchat/pkg/llm/openai"
)

// NewApp creates the docchat application.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName("docchat"),
		app.WithShortDescription("Chat with your documents"),
		app.WithDescription(`docchat is a retrieval-augmented chat service.

Users upload documents into isolated chat sessions, then ask questions
that are answered from the uploaded content with streaming responses.`),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return run(opts)
		}),
	)
}

func run(opts *Options) error {
	// 1. Logger
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting docchat service", "version", app.GetVersion())

	ctx := context.Background()

	// 2. MongoDB
	mongoClient, err := mongodb.NewWithContext(ctx, opts.MongoDB)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	defer func() {
		if closeErr := mongoClient.Close(); closeErr != nil {
			logger.Warnw("failed to close mongodb client", "error", closeErr)
		}
	}()
	logger.Infow("MongoDB connected", "database", opts.MongoDB.Database)

	// 3. Milvus
	milvusClient, err := milvus.New(opts.Milvus)
	if err != nil {
		return fmt.Errorf("failed to connect to milvus: %w", err)
	}
	defer func() {
		if closeErr := milvusClient.Close(context.Background()); closeErr != nil {
			logger.Warnw("failed to close milvus client", "error", closeErr)
		}
	}()
	logger.Infow("Milvus connected", "address", opts.Milvus.Address)

	// 4. Redis, 可选的查询扩展缓存。连不上时禁用缓存而不是拒绝启动。
	var expansionCache *biz.ExpansionCache
	if opts.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:        opts.Redis.Addr,
			Password:    opts.Redis.Password,
			DB:          opts.Redis.DB,
			DialTimeout: opts.Redis.DialTimeout,
			ReadTimeout: opts.Redis.ReadTimeout,
			PoolSize:    opts.Redis.PoolSize,
		})
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			logger.Warnw("redis unavailable, expansion cache disabled",
				"addr", opts.Redis.Addr, "error", pingErr)
		} else {
			expansionCache = biz.NewExpansionCache(rdb)
			defer rdb.Close()
			logger.Infow("Redis connected", "addr", opts.Redis.Addr)
		}
	}

	// 5. LLM providers
	embedder, err := llm.NewEmbeddingProvider(opts.LLM.Provider, opts.LLM.ProviderConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(opts.LLM.Provider, opts.LLM.ProviderConfig())
	if err != nil {
		return fmt.Errorf("failed to create chat provider: %w", err)
	}
	logger.Infow("LLM providers ready",
		"provider", opts.LLM.Provider,
		"embed_model", opts.LLM.EmbedModel,
		"chat_model", opts.LLM.ChatModel)

	// 6. Stores
	vectors := store.NewMilvusStore(milvusClient, opts.Ingest.EmbeddingDim)
	sessions := store.NewMongoSessionStore(mongoClient)
	files := store.NewDiskFileStore(opts.Ingest.DataDir)

	// 7. Business layer
	chunker, err := biz.NewChunker(opts.Ingest.ChunkSize, opts.Ingest.ChunkOverlap)
	if err != nil {
		return err
	}
	ingestor := biz.NewIngestor(biz.NewExtractor(), chunker, embedder, vectors, sessions, files)
	expander := biz.NewExpander(chat, expansionCache, opts.Retrieval.ExpansionCount)
	retriever := biz.NewRetriever(embedder, vectors, expander, &biz.RetrieverConfig{
		TopK:      opts.Retrieval.TopK,
		FetchK:    opts.Retrieval.FetchK,
		MMRLambda: opts.Retrieval.MMRLambda,
	})
	generator := biz.NewGenerator(chat, &biz.GeneratorConfig{
		SystemPreamble: opts.Generation.SystemPreamble,
		HistoryLimit:   opts.Generation.HistoryLimit,
	})
	service := biz.NewChatService(sessions, vectors, files, ingestor, retriever, generator)

	// 8. HTTP server
	return runServer(opts.Server, service)
}
