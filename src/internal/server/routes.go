package server

import (
	"context"
	"net/http"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/dependency"
	"tutorhub-portal-svc/src/internal/middleware"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

func SetupRoutes(deps *dependency.Manager) {
	router := deps.Router
	router.Use(middleware.Metrics())
	router.Use(enableCORS)

	setupHealthEndpoint(deps)
	setupPublicRoutes(router, deps)

	portal := router.Group("/")
	portal.Use(deps.AuthMiddleware.ClientSession())

	setupAuthRoutes(portal, deps)
	setupSessionRoutes(portal, deps)
	setupChatRoutes(portal, deps)
	setupAdminRoutes(portal, deps)
}

func setupHealthEndpoint(deps *dependency.Manager) {
	router := deps.Router
	cfg := deps.Config

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		storageStatus := "ok"
		if err := deps.Storage.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			storageStatus = "error: " + err.Error()
		}

		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"service":   cfg.App.Name,
			"version":   cfg.App.Version,
			"storage":   storageStatus,
			"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		database := gin.H{
			"driver": cfg.Storage.Driver,
		}
		if deps.Mongodb != nil {
			database["mongodb"] = getStatus(isMongoConnected(ctx, deps.Mongodb))
		}
		if deps.Redis != nil {
			database["redis"] = getStatus(isRedisConnected(ctx, deps.Redis.Client))
		}

		queue := "disabled"
		if deps.RabbitMQ != nil {
			queue = getStatus(!deps.RabbitMQ.Conn.IsClosed())
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "operational",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
			"components": gin.H{
				"database": database,
				"queue":    queue,
				"portal": gin.H{
					"clients":     deps.Clients.Len(),
					"chatPollers": deps.ChatHub.Len(),
					"sso":         cfg.SSO.Enabled,
				},
			},
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func setupPublicRoutes(router *gin.Engine, deps *dependency.Manager) {
	// API status endpoint
	router.GET("/api/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api_version": "v1",
			"status":      "operational",
			"service":     deps.Config.App.Name,
		})
	})

	router.GET(deps.Config.Portal.UnauthorizedURL, func(c *gin.Context) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "You do not have permission to view this page",
		})
	})
}

func setupAuthRoutes(portal *gin.RouterGroup, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.AuthHandler

	portal.GET(deps.Config.Portal.LoginPath, middleware.SetRouteName("loginPage"), handler.LoginPage)
	portal.POST(deps.Config.Portal.LoginPath, middleware.SetRouteName("login"), handler.Login)
	portal.POST("/register", middleware.SetRouteName("register"), handler.Register)
	portal.POST("/logout", middleware.SetRouteName("logout"), handler.Logout)
	portal.GET("/me", middleware.SetRouteName("me"), handler.Me)

	portal.GET("/sso/start", middleware.SetRouteName("ssoStart"), deps.SSOHandler.Start)
	portal.GET("/sso/callback", middleware.SetRouteName("ssoCallback"), deps.SSOHandler.Callback)

	portal.GET(deps.Config.Portal.DashboardPath,
		middleware.SetRouteName("dashboard"),
		authMiddleware.RequireAuth(),
		deps.DashboardHandler.GetDashboard)
}

func setupSessionRoutes(portal *gin.RouterGroup, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.SessionHandler

	sessions := portal.Group("/sessions")
	{
		sessions.GET("",
			middleware.SetRouteName("listSessions"),
			authMiddleware.RequireAuth(),
			handler.ListSessions)

		sessions.POST("",
			middleware.SetRouteName("createSession"),
			authMiddleware.RequireRoles(models.RoleTutor),
			handler.CreateSession)

		sessions.GET("/:id",
			middleware.SetRouteName("getSession"),
			authMiddleware.RequireAuth(),
			handler.GetSession)

		sessions.POST("/:id/actions/:action",
			middleware.SetRouteName("sessionAction"),
			authMiddleware.RequireAuth(),
			handler.PerformAction)

		sessions.POST("/:id/register",
			middleware.SetRouteName("registerSession"),
			authMiddleware.RequireAuth(),
			handler.Register)

		sessions.POST("/:id/feedback",
			middleware.SetRouteName("submitFeedback"),
			authMiddleware.RequireAuth(),
			handler.SubmitFeedback)
	}
}

func setupChatRoutes(portal *gin.RouterGroup, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.ChatHandler

	chat := portal.Group("/chat", authMiddleware.RequireAuth())
	{
		chat.GET("/conversations", middleware.SetRouteName("listConversations"), handler.ListConversations)
		chat.POST("/conversations", middleware.SetRouteName("createConversation"), handler.CreateConversation)
		chat.GET("/conversations/:id/messages", middleware.SetRouteName("getMessages"), handler.GetMessages)
		chat.POST("/conversations/:id/messages", middleware.SetRouteName("sendMessage"), handler.SendMessage)
		chat.GET("/conversations/:id/stream", middleware.SetRouteName("chatStream"), handler.Stream)
		chat.GET("/users/search", middleware.SetRouteName("searchUsers"), handler.SearchUsers)
	}
}

func setupAdminRoutes(portal *gin.RouterGroup, deps *dependency.Manager) {
	authMiddleware := deps.AuthMiddleware
	handler := deps.UserHandler

	// Apply route name FIRST, then auth middlewares
	admin := portal.Group("/admin")
	{
		admin.GET("",
			middleware.SetRouteName("adminHome"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.AdminHome)

		admin.GET("/users",
			middleware.SetRouteName("getUsersList"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.GetAllUsers)

		admin.GET("/users/stats",
			middleware.SetRouteName("getUsersStats"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.GetUserStats)

		admin.PATCH("/users/:id/activate",
			middleware.SetRouteName("activateUser"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.ActivateUser)

		admin.PATCH("/users/:id/deactivate",
			middleware.SetRouteName("deactivateUser"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.DeactivateUser)

		admin.PATCH("/users/:id/suspend",
			middleware.SetRouteName("suspendUser"),
			authMiddleware.RequireRoles(models.AdminRoles...),
			handler.SuspendUser)
	}
}

func isMongoConnected(ctx context.Context, mongodb *clients.MongoDB) bool {
	if err := mongodb.Client.Ping(ctx, nil); err != nil {
		return false
	}
	return true
}

func isRedisConnected(ctx context.Context, redisClient *redis.Client) bool {
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return false
	}
	return true
}

func enableCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}

func getStatus(b bool) string {
	if b {
		return "connected"
	}
	return "disconnected"
}
