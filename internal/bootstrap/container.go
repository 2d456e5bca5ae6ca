package bootstrap

import (
	"context"
	"fmt"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/observability"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/embedding"
	"ai-tutor-be/pkg/embedding/jina"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/factory"
	pktNats "ai-tutor-be/pkg/nats"
	tutorevents "ai-tutor-be/pkg/tutor/events"
	"ai-tutor-be/pkg/tutor/executor"
	tutormemory "ai-tutor-be/pkg/tutor/memory"
	"ai-tutor-be/pkg/tutor/quiz"
	"ai-tutor-be/pkg/tutor/reference"
	"ai-tutor-be/pkg/tutor/response"
	"ai-tutor-be/pkg/tutor/writer"
	"ai-tutor-be/pkg/vectorstore"
	"ai-tutor-be/pkg/vectorstore/pgvector"
	"ai-tutor-be/pkg/vectorstore/weaviate"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	TutorController        controller.ITutorController
	ConversationController controller.IConversationController
	QuizController         controller.IQuizController
	ReferenceController    controller.IReferenceController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Exposed for the simulation CLI
	Pipeline      *executor.PipelineExecutor
	Conversations contract.ConversationLog
	Store         vectorstore.Store
	Logger        logger.ILogger
	Metrics       *observability.Metrics

	closers []func()
}

// Providers lets callers replace the model backends, e.g. with stubs.
type Providers struct {
	LLM       llm.LLMProvider
	Embedding embedding.EmbeddingProvider
}

// Options tunes NewContainer. Zero values select the configured backends.
type Options struct {
	Providers  Providers
	Logger     logger.ILogger
	Registerer prometheus.Registerer
	// DisableEvents skips the NATS connection.
	DisableEvents bool
}

// NewContainer wires the service. db may be nil when neither the
// conversation log nor the semantic store uses postgres.
func NewContainer(db *gorm.DB, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	sysLogger := opts.Logger
	if sysLogger == nil {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	}
	pipelineLogger := sysLogger
	if opts.Logger == nil && cfg.App.PipelineLogPath != "" {
		pipelineLogger = logger.NewIsolatedLogger(cfg.App.PipelineLogPath)
	}
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	metrics := observability.NewMetrics(cfg.App.MetricsNamespace, registerer)

	// 2. Model Providers
	embeddingProvider := opts.Providers.Embedding
	if embeddingProvider == nil {
		var err error
		if embeddingProvider, err = NewEmbeddingProvider(cfg); err != nil {
			return nil, err
		}
	}
	llmProvider := opts.Providers.LLM
	if llmProvider == nil {
		baseURL := cfg.Ai.OllamaBaseURL
		apiKey := ""
		switch cfg.Ai.LLMProvider {
		case "openai":
			baseURL, apiKey = cfg.Ai.OpenAIBaseURL, cfg.Keys.OpenAI
		case "huggingface":
			baseURL, apiKey = cfg.Ai.HuggingFaceBaseURL, cfg.Keys.HuggingFace
		}
		var err error
		if llmProvider, err = factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, baseURL, apiKey); err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
	}
	sysLogger.Info("BOOT", "Model providers ready", map[string]interface{}{
		"embedding": cfg.Ai.EmbeddingProvider,
		"llm":       cfg.Ai.LLMProvider,
		"model":     cfg.Ai.LLMModel,
	})

	// 3. Storage
	conversations, err := c.newConversationLog(db, cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	store, err := newSemanticStore(db, cfg)
	if err != nil {
		return nil, err
	}
	var quizzes contract.QuizSessionRepository = memory.NewQuizSessionRepository()
	if db != nil {
		quizzes = implementation.NewQuizSessionRepository(db)
	}
	bootstrapper := vectorstore.NewBootstrapper(store)

	// 4. Event Bus
	var sink pktNats.Sink
	if !opts.DisableEvents {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("BOOT", "NATS unavailable, domain events disabled", map[string]interface{}{
				"url":   cfg.App.NatsURL,
				"error": err.Error(),
			})
		} else {
			sink = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}
	eventPublisher := tutorevents.NewNatsPublisher(sink, sysLogger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 5. Pipeline
	memoryRetriever := tutormemory.NewRetriever(conversations, store, embeddingProvider, tutormemory.Config{
		Collection:      cfg.Tutor.MemoryCollection,
		ShortTermWindow: cfg.Tutor.ShortTermWindow,
		LongTermTopK:    cfg.Tutor.LongTermTopK,
	}, pipelineLogger)
	referenceRetriever := reference.NewRetriever(store, embeddingProvider, cfg.Tutor.ReferenceCollection, cfg.Tutor.ReferenceTopK, pipelineLogger)
	memoryWriter := writer.NewWriter(conversations, llmProvider, embeddingProvider, store, bootstrapper,
		cfg.Tutor.MemoryCollection, eventPublisher, metrics, pipelineLogger)
	pipeline := executor.NewPipelineExecutor(
		memoryRetriever,
		referenceRetriever,
		response.NewSynthesizer(llmProvider, cfg.Ai.GeneratorTimeout, pipelineLogger),
		memoryWriter,
		executor.Options{ParallelRetrieval: cfg.Tutor.ParallelRetrieval},
		metrics,
		pipelineLogger,
	)
	quizEngine := quiz.NewEngine(quizzes, memoryRetriever, referenceRetriever, llmProvider,
		cfg.Tutor.QuizLength, eventPublisher, metrics, pipelineLogger)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Tutor.IngestTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Tutor.IngestTopic, cfg.Tutor.ReferenceCollection,
		store, bootstrapper, embeddingProvider, metrics, sysLogger)
	tutorService := service.NewTutorService(pipeline, conversations, sysLogger)
	conversationService := service.NewConversationService(conversations, quizzes, sysLogger)
	quizService := service.NewQuizService(quizEngine, conversations)
	referenceService := service.NewReferenceService(publisherService, sysLogger)

	// 7. Controllers
	c.TutorController = controller.NewTutorController(tutorService)
	c.ConversationController = controller.NewConversationController(conversationService)
	c.QuizController = controller.NewQuizController(quizService)
	c.ReferenceController = controller.NewReferenceController(referenceService)
	c.ConsumerService = consumerService

	c.Pipeline = pipeline
	c.Conversations = conversations
	c.Store = store
	c.Logger = sysLogger
	c.Metrics = metrics
	return c, nil
}

// Close releases connections opened by NewContainer.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func NewEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "openai":
		if cfg.Keys.OpenAI == "" {
			return nil, fmt.Errorf("openai embeddings require OPENAI_API_KEY")
		}
		return embedding.NewOpenAIProvider(cfg.Keys.OpenAI, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension), nil
	case "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel), nil
	case "gemini":
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini), nil
	case "jina":
		return jina.NewJinaProvider(cfg.Keys.Jina, "", cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

func (c *Container) newConversationLog(db *gorm.DB, cfg *config.Config, log logger.ILogger) (contract.ConversationLog, error) {
	switch cfg.Tutor.ConversationBackend {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("conversation backend postgres needs DB_CONNECTION_STRING")
		}
		return implementation.NewConversationLog(db), nil
	case "redis":
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Warn("BOOT", "Failed to parse Redis URL, using it as an address", map[string]interface{}{
				"error": err.Error(),
			})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return implementation.NewConversationLogRedis(rdb), nil
	case "memory":
		return memory.NewConversationLog(), nil
	default:
		return nil, fmt.Errorf("unsupported conversation backend: %s", cfg.Tutor.ConversationBackend)
	}
}

func newSemanticStore(db *gorm.DB, cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Tutor.SemanticBackend {
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("semantic backend pgvector needs DB_CONNECTION_STRING")
		}
		return pgvector.NewStore(db), nil
	case "weaviate":
		return weaviate.NewStoreFromURL(cfg.Tutor.WeaviateURL)
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported semantic backend: %s", cfg.Tutor.SemanticBackend)
	}
}
