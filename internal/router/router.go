package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-core/internal/cache"
	"chat-core/internal/client"
	"chat-core/internal/config"
	"chat-core/internal/event"
	"chat-core/internal/handler"
	"chat-core/internal/middleware"
	"chat-core/internal/presence"
	"chat-core/internal/repository"
	"chat-core/internal/service"
	"chat-core/internal/ws"
)

func Setup(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS("*"))
	r.Use(middleware.MetricsMiddleware())

	// Repositories
	workspaceRepo := repository.NewWorkspaceRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	statusRepo := repository.NewStatusRepository(db)

	// Shared infrastructure
	registry := presence.NewRegistry(redisClient, logger,
		time.Duration(cfg.Presence.ConnectionTTLMinutes)*time.Minute)
	accessCache := cache.NewAccessCache(redisClient, logger)
	broadcaster := event.NewRedisBroadcaster(redisClient, logger)
	userClient := client.NewUserClient(cfg.Services.UserServiceURL, 5*time.Second)

	// Services
	accessService := service.NewAccessService(accessCache, channelRepo, workspaceRepo, logger)
	presenceService := service.NewPresenceService(registry, statusRepo, accessService, broadcaster, logger)
	messageService := service.NewMessageService(messageRepo, channelRepo, workspaceRepo,
		accessService, presenceService, userClient, broadcaster, logger)
	conversationService := service.NewConversationService(channelRepo, workspaceRepo, messageRepo,
		userClient, presenceService, accessCache, logger)
	workspaceService := service.NewWorkspaceService(workspaceRepo, accessCache, broadcaster, logger)
	channelService := service.NewChannelService(channelRepo, workspaceRepo, accessCache, logger)

	// Token validator
	validator := middleware.NewAuthServiceValidator(cfg.Auth.ServiceURL, cfg.Auth.SecretKey, logger)

	// WebSocket hub
	hub := ws.NewHub(redisClient, logger)
	sessionHandler := ws.NewSessionHandler(hub, validator, presenceService, accessService, messageService, logger)

	// Handlers
	healthHandler := handler.NewHealthHandler(db, redisClient)
	presenceHandler := handler.NewPresenceHandler(presenceService, accessService)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, accessService)
	channelHandler := handler.NewChannelHandler(channelService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	messageHandler := handler.NewMessageHandler(messageService)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", middleware.MetricsHandler())

	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket endpoint authenticates via token query parameter
		api.GET("/ws", sessionHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(validator))
		{
			// Workspace routes
			authenticated.POST("/workspaces", workspaceHandler.CreateWorkspace)
			authenticated.DELETE("/workspaces/:workspaceId", workspaceHandler.DeleteWorkspace)
			authenticated.GET("/workspaces/:workspaceId/members", workspaceHandler.ListMembers)
			authenticated.POST("/workspaces/:workspaceId/members", workspaceHandler.AddMember)
			authenticated.DELETE("/workspaces/:workspaceId/members/:userId", workspaceHandler.RemoveMember)
			authenticated.POST("/workspaces/:workspaceId/transfer-ownership", workspaceHandler.TransferOwnership)
			authenticated.POST("/workspaces/:workspaceId/invitations", workspaceHandler.InviteMember)
			authenticated.POST("/workspaces/:workspaceId/invitations/accept", workspaceHandler.AcceptInvitation)
			authenticated.GET("/workspaces/:workspaceId/online", presenceHandler.OnlineUsers)

			// Channel routes
			authenticated.POST("/workspaces/:workspaceId/channels", channelHandler.CreateChannel)
			authenticated.DELETE("/channels/:channelId", channelHandler.DeleteChannel)
			authenticated.POST("/channels/:channelId/members", channelHandler.AddMember)
			authenticated.DELETE("/channels/:channelId/members/:userId", channelHandler.RemoveMember)

			// Message routes
			authenticated.GET("/channels/:channelId/messages", messageHandler.GetMessages)
			authenticated.POST("/attachments", messageHandler.UploadAttachment)

			// Conversation routes
			authenticated.GET("/conversations", conversationHandler.ListConversations)
			authenticated.POST("/conversations/direct", conversationHandler.StartDirect)
			authenticated.POST("/conversations/group", conversationHandler.CreateGroup)
			authenticated.POST("/conversations/group/:channelId/members", conversationHandler.AddGroupMember)
			authenticated.DELETE("/conversations/group/:channelId/members/me", conversationHandler.LeaveGroup)

			// Presence routes
			authenticated.GET("/presence/status/:userId", presenceHandler.UserStatus)
			authenticated.PUT("/presence/status", presenceHandler.SetStatus)
		}
	}

	return r
}
