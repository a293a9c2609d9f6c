package main

import (
	"context"
	"log"
	"time"

	"vibelink/config"
	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/domain/notification"
	"vibelink/internal/domain/post"
	"vibelink/internal/domain/user"
	"vibelink/internal/handler"
	"vibelink/internal/realtime"
	"vibelink/internal/redis"
	"vibelink/internal/repository"
	"vibelink/internal/server"
	"vibelink/internal/services"
	"vibelink/internal/storage"
	"vibelink/pkg/database"
	"vibelink/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	// Database
	database.Connect(cfg)
	if err := database.DB.AutoMigrate(
		&user.User{},
		&user.Settings{},
		&user.Block{},
		&user.Session{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.PinnedMessage{},
		&message.Message{},
		&message.Reaction{},
		&message.ReadReceipt{},
		&post.Post{},
		&notification.Notification{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Redis
	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	redisClient := redis.GetClient()
	publisher := redis.NewPublisher(redisClient)
	presenceStore := redis.NewPresenceStore(redisClient, publisher, cfg.OfflineTimeout)
	rateLimiter := redis.NewRateLimiter(redisClient, redis.DefaultRateLimitConfig())

	// Object storage; attachment presigning degrades gracefully when
	// credentials are absent.
	var store *storage.Client
	s3Client, err := storage.NewClient(context.Background(), storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		PresignTTL: 15 * time.Minute,
	})
	if err != nil {
		l.Errorf("S3 client unavailable, attachment uploads disabled: %v", err)
	} else {
		store = s3Client
	}

	// Repositories
	userRepo := repository.NewUserRepository(database.DB)
	convRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	postRepo := repository.NewPostRepository(database.DB)
	notifRepo := repository.NewNotificationRepository(database.DB)

	// Services
	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo, presenceStore)
	conversationService := services.NewConversationService(convRepo, presenceStore)
	notificationService := services.NewNotificationService(notifRepo, userRepo, l)
	messageService := services.NewMessageService(messageRepo, convRepo, postRepo, notificationService, l)
	attachmentService := services.NewAttachmentService(store)

	// Realtime layer
	hub := realtime.NewHub(conversationService, messageService, cfg.TokenScanInterval)
	registry := realtime.NewRegistry(hub, userService, realtime.RegistryConfig{
		HeartbeatInterval: cfg.HeartbeatInterval,
		OfflineTimeout:    cfg.OfflineTimeout,
		OfflineGrace:      cfg.OfflineGrace,
	})
	callManager := realtime.NewCallManager(hub, conversationService, messageService, realtime.CallConfig{
		RingTimeout:     cfg.CallRingTimeout,
		FailedThreshold: cfg.CallFailedThreshold,
		SessionLinger:   cfg.SessionLinger,
	})
	hub.AttachPresence(registry)
	hub.AttachCalls(callManager)

	messageService.SetBroadcaster(hub)
	notificationService.SetBroadcaster(hub)

	notificationService.Start()
	go hub.Run()
	go registry.Run()

	// HTTP surface
	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		User:         handler.NewUserHandler(userService),
		Upload:       handler.NewUploadHandler(attachmentService),
		Notification: handler.NewNotificationHandler(notificationService),
		WebSocket:    realtime.NewWebSocketHandler(hub, authService),
	}, authService, rateLimiter)

	if err := srv.Start(); err != nil {
		l.Errorf("server exited with error: %v", err)
	}

	callManager.Stop()
	registry.Stop()
	hub.Stop()
	notificationService.Stop()
}
