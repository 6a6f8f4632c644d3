package dependency

import (
	"fmt"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/cache"
	"tutorhub-portal-svc/src/internal/chat"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/dashboard"
	"tutorhub-portal-svc/src/internal/middleware"
	"tutorhub-portal-svc/src/internal/sso"
	"tutorhub-portal-svc/src/internal/storage"
	"tutorhub-portal-svc/src/internal/tutoring"
	"tutorhub-portal-svc/src/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
	StorageTiered = "tiered"
)

type Manager struct {
	Router   *gin.Engine
	Config   *config.Configuration
	Mongodb  *clients.MongoDB
	Redis    *clients.RedisClient
	RabbitMQ *clients.RabbitMQ

	Storage        storage.Storage
	CacheService   cache.Service
	Publisher      clients.ActivityPublisher
	Clients        *auth.Manager
	ChatHub        *chat.Hub
	AuthMiddleware *middleware.AuthMiddleware

	AuthHandler      auth.Handler
	SSOHandler       sso.Handler
	DashboardHandler dashboard.Handler
	SessionHandler   tutoring.Handler
	ChatHandler      chat.Handler
	UserHandler      user.Handler
}

// NewDependencyManager wires the portal. mongodb, redisClient and rabbitMQ
// may be nil when the configuration does not need them.
func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) (*Manager, error) {
	store, err := NewStorage(cfg, mongodb, redisClient)
	if err != nil {
		return nil, err
	}

	cacheService := cache.NewCacheService(store)

	publisher := clients.NewNoopPublisher()
	if rabbitMQ != nil {
		publisher = clients.NewActivityPublisher(&cfg.Queue.RabbitMQ, rabbitMQ.Channel)
	}

	api := clients.NewAPIClient(cfg)
	authClient := clients.NewAuthClient(api)
	sessionClient := clients.NewSessionClient(api)
	chatClient := clients.NewChatClient(api)

	verifyTimeout := time.Duration(cfg.App.Timeout) * time.Second
	clientManager := auth.NewManager(authClient, store, verifyTimeout)

	hub := chat.NewHub(chatClient, cfg.Chat.PollInterval(), cfg.Chat.SearchDebounce(), cfg.Chat.WatchGrace())
	clientManager.OnDrop(hub.Drop)

	authMiddleware := middleware.NewAuthMiddleware(cfg, middleware.NewCookieStore(cfg.Cookie), clientManager)

	dashboardService := dashboard.NewDashboardService(clients.NewDashboardClient(api), sessionClient)
	userService := user.NewUserService(user.NewUserRepository(clients.NewUserClient(api)), cfg)

	logrus.WithFields(logrus.Fields{
		"storage":  cfg.Storage.Driver,
		"backend":  cfg.Backend.BaseURL,
		"rabbitmq": rabbitMQ != nil,
		"sso":      cfg.SSO.Enabled,
	}).Info("Dependencies initialized")

	return &Manager{
		Router:   router,
		Config:   cfg,
		Mongodb:  mongodb,
		Redis:    redisClient,
		RabbitMQ: rabbitMQ,

		Storage:        store,
		CacheService:   cacheService,
		Publisher:      publisher,
		Clients:        clientManager,
		ChatHub:        hub,
		AuthMiddleware: authMiddleware,

		AuthHandler:      auth.NewHandler(cfg, clientManager, publisher),
		SSOHandler:       sso.NewHandler(cfg, publisher),
		DashboardHandler: dashboard.NewHandler(cfg, dashboardService),
		SessionHandler:   tutoring.NewHandler(cfg, sessionClient, publisher),
		ChatHandler:      chat.NewHandler(cfg, chatClient, hub, publisher),
		UserHandler:      user.NewHandler(cfg, userService, cacheService, publisher),
	}, nil
}

// NewStorage picks the client-state store named by the storage driver.
func NewStorage(cfg *config.Configuration, mongodb *clients.MongoDB, redisClient *clients.RedisClient) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "", StorageMemory:
		return storage.NewMemoryStorage(), nil
	case StorageRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("storage driver %q requires redis", cfg.Storage.Driver)
		}
		return storage.NewRedisStorage(redisClient.Client, &cfg.Storage), nil
	case StorageMongo:
		if mongodb == nil {
			return nil, fmt.Errorf("storage driver %q requires mongodb", cfg.Storage.Driver)
		}
		return storage.NewMongoStorage(mongodb.Database, cfg.Database.ClientStateCollection), nil
	case StorageTiered:
		if redisClient == nil || mongodb == nil {
			return nil, fmt.Errorf("storage driver %q requires redis and mongodb", cfg.Storage.Driver)
		}
		return storage.NewTieredStorage(
			storage.NewRedisStorage(redisClient.Client, &cfg.Storage),
			storage.NewMongoStorage(mongodb.Database, cfg.Database.ClientStateCollection),
		), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NeedsRedis reports whether the storage driver uses redis.
func NeedsRedis(driver string) bool {
	return driver == StorageRedis || driver == StorageTiered
}

// NeedsMongo reports whether the storage driver uses mongodb.
func NeedsMongo(driver string) bool {
	return driver == StorageMongo || driver == StorageTiered
}

// Close stops background work and releases connections.
func (m *Manager) Close() {
	m.ChatHub.Close()
	if m.RabbitMQ != nil {
		_ = m.RabbitMQ.Close()
	}
	if m.Redis != nil {
		_ = m.Redis.Close()
	}
}
