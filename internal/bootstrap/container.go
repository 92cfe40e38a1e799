package bootstrap

import (
	"context"
	"log"

	"kb-chat-be/internal/config"
	"kb-chat-be/internal/controller"
	"kb-chat-be/internal/pkg/logger"
	"kb-chat-be/internal/repository/unitofwork"
	"kb-chat-be/internal/service"
	"kb-chat-be/pkg/chat/orchestrator"
	"kb-chat-be/pkg/chat/ratelimit"
	"kb-chat-be/pkg/llm/factory"
	pktNats "kb-chat-be/pkg/nats"
	"kb-chat-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// chatCompletedTopic is the internal bus topic between the chat service and
// the NATS forwarder.
const chatCompletedTopic = "CHAT_MESSAGE_COMPLETED"

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis backs the shared rate-limit counters. Without it the limiter
	// degrades to process-local counting.
	var counter ratelimit.Counter
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Rate limits are per-instance", err)
		counter = ratelimit.NewMemoryCounter()
	} else {
		counter = ratelimit.NewRedisCounter(rdb)
	}
	limiter := ratelimit.NewLimiter(counter, cfg.Limits.UserHourly, cfg.Limits.OrgDaily, sysLogger)

	// 3. Pipeline Components
	retriever := retrieval.NewClient(cfg.Retrieval.BaseURL, cfg.Retrieval.APIKey, cfg.Retrieval.Timeout)

	llmProvider, err := factory.NewProvider(
		cfg.Generation.Provider,
		cfg.Generation.Model,
		cfg.Generation.BaseURL,
		cfg.Generation.APIKey,
		cfg.Generation.Timeout,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Generation.Provider, cfg.Generation.Model)

	chatStore := service.NewChatStore(uowFactory)
	orch := orchestrator.New(retriever, llmProvider, chatStore, sysLogger)

	// 4. Services
	publisherService := service.NewPublisherService(chatCompletedTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, chatCompletedTopic, natsPub, sysLogger)

	chatService := service.NewChatService(
		uowFactory,
		limiter,
		orch,
		publisherService,
		sysLogger,
		cfg.Generation.Model,
	)

	// 5. Controllers
	return &Container{
		ChatController:  controller.NewChatController(chatService),
		ConsumerService: consumerService,
	}
}
