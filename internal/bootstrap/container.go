package bootstrap

import (
	"context"
	"time"

	"bchat-be/internal/config"
	"bchat-be/internal/controller"
	"bchat-be/internal/handler"
	"bchat-be/internal/pkg/identity"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/pkg/mailer"
	"bchat-be/internal/pkg/serverutils"
	"bchat-be/internal/realtime"
	"bchat-be/internal/repository/memory"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/internal/service"
	"bchat-be/internal/websocket"
	"bchat-be/pkg/llm/factory"
	pktNats "bchat-be/pkg/nats"
	"bchat-be/pkg/ratelimit"
	"bchat-be/pkg/storage"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	usernameCacheTTL = 5 * time.Minute
	aiQuotaWindow    = time.Hour
)

type Container struct {
	// Controllers
	AuthController    controller.IAuthController
	RoomController    controller.IRoomController
	MessageController controller.IMessageController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	SocketHandler *handler.SocketHandler
	WebSocketHub  *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		sysLogger,
	)

	tokenService := identity.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	jwtMiddleware := serverutils.NewJwtMiddleware(tokenService)

	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS
	var mirror service.EventMirror
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, cfg.App.NatsStream, cfg.App.NatsSubjectPrefix)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			mirror = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Redis backs the AI quota when configured
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.Ai.QuotaPerHour, aiQuotaWindow)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to Redis, AI quota stays in memory", map[string]interface{}{"error": err.Error()})
			_ = rdb.Close()
		} else {
			limiter = ratelimit.NewRedisLimiter(rdb, "bchat:quota", cfg.Ai.QuotaPerHour, aiQuotaWindow)
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}

	var fileStorage storage.FileStorage
	if local, err := storage.NewLocalStorage(cfg.App.UploadDir, "/uploads"); err != nil {
		sysLogger.Error("BOOTSTRAP", "Failed to prepare upload directory, uploads disabled", map[string]interface{}{"error": err.Error()})
	} else {
		fileStorage = local
	}

	llmProvider, err := factory.NewLLMProvider(factory.Settings{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		GeminiAPIKey:  cfg.Ai.GeminiAPIKey,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
	})
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "AI assistant disabled", map[string]interface{}{"error": err.Error()})
	} else {
		sysLogger.Info("BOOTSTRAP", "Using LLM Provider", map[string]interface{}{"provider": cfg.Ai.LLMProvider, "model": cfg.Ai.LLMModel})
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	wsHub := websocket.NewHub(wsLogger)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.App.RoomEventsTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.RoomEventsTopic,
		emailService,
		mirror,
		sysLogger,
	)

	users := service.NewUserDirectory(uowFactory, memory.NewUsernameCache(usernameCacheTTL))
	authService := service.NewAuthService(uowFactory, tokenService, publisherService, wsHub, users, cfg.Auth.OTPTTL, sysLogger)
	roomService := service.NewRoomService(uowFactory, publisherService, wsHub, sysLogger)
	messageService := service.NewMessageService(uowFactory, users, fileStorage, sysLogger)
	assistantService := service.NewAssistantService(llmProvider, messageService, limiter, service.AssistantSettings{
		Timeout:      cfg.Ai.Timeout,
		HistoryLimit: cfg.Ai.HistoryLimit,
		Model:        cfg.Ai.LLMModel,
	}, sysLogger)

	// 5. Realtime
	coordinator := realtime.NewCoordinator(wsHub, roomService, messageService, assistantService, users, wsLogger)
	wsHub.SetHandler(coordinator)

	// 6. Controllers
	c.AuthController = controller.NewAuthController(authService, jwtMiddleware)
	c.RoomController = controller.NewRoomController(roomService, jwtMiddleware)
	c.MessageController = controller.NewMessageController(roomService, messageService, coordinator, jwtMiddleware, int64(cfg.App.MaxUploadBytes))
	c.SocketHandler = handler.NewSocketHandler(wsHub, tokenService, wsLogger)
	c.WebSocketHub = wsHub
	c.ConsumerService = consumerService

	return c
}

// Close tears down the hub and the infrastructure clients in reverse order.
func (c *Container) Close() {
	c.WebSocketHub.Shutdown()
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
