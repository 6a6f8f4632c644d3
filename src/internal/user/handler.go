package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/auth"
	"tutorhub-portal-svc/src/internal/cache"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	AdminHome(c *gin.Context)
	GetAllUsers(c *gin.Context)
	GetUserStats(c *gin.Context)
	ActivateUser(c *gin.Context)
	DeactivateUser(c *gin.Context)
	SuspendUser(c *gin.Context)
}

type handler struct {
	config       *config.Configuration
	service      Service
	cacheService cache.Service
	publisher    clients.ActivityPublisher
}

func NewHandler(cfg *config.Configuration, service Service, cacheService cache.Service, publisher clients.ActivityPublisher) Handler {
	return &handler{
		config:       cfg,
		service:      service,
		cacheService: cacheService,
		publisher:    publisher,
	}
}

// AdminHome is the landing page of the administration area.
func (h *handler) AdminHome(c *gin.Context) {
	session := auth.FromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user": session.User(),
			"links": gin.H{
				"users": "/admin/users",
				"stats": "/admin/users/stats",
			},
		},
	})
}

func (h *handler) GetAllUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	req := &models.GetAllUsersRequest{
		Page:   parseIntParam(c, "page", 1),
		Limit:  parseIntParam(c, "limit", h.config.Search.MinQueryLimit),
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	}

	userID, _ := c.Get("user_id")
	logrus.WithFields(logrus.Fields{
		"admin_user_id": userID,
		"page":          req.Page,
		"limit":         req.Limit,
		"role":          req.Role,
		"status":        req.Status,
	}).Info("GetAllUsers request received")

	response, err := h.service.GetAllUsers(ctx, auth.FromContext(c), req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRoleFilter), errors.Is(err, models.ErrInvalidStatusFilter):
			h.sendErrorResponse(c, http.StatusBadRequest, "Invalid filter", err.Error())
		case clients.IsUnauthorized(err):
			h.sendErrorResponse(c, http.StatusUnauthorized, "Not authenticated", err.Error())
		default:
			logrus.WithError(err).Error("Failed to get all users")
			h.sendErrorResponse(c, http.StatusBadGateway, "Failed to retrieve users", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
		"message": "Users retrieved successfully",
	})
}

func parseIntParam(c *gin.Context, param string, defaultValue int) int {
	value := c.Query(param)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"param": param,
			"value": value,
			"error": err,
		}).Warn("Invalid integer parameter, using default")

		return defaultValue
	}
	return parsed
}

func (h *handler) GetUserStats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	var cached Stats
	if found, err := h.cacheService.Get(ctx, cache.KeyUserStats, &cached); err == nil && found {
		logrus.Debug("User statistics retrieved from cache")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    cached,
			"message": "User statistics retrieved successfully (from cache)",
		})
		return
	}

	stats, err := h.service.GetUserStats(ctx, auth.FromContext(c))
	if err != nil {
		h.sendErrorResponse(c, http.StatusBadGateway, "Failed to retrieve user statistics", err.Error())
		return
	}

	if err := h.cacheService.Set(ctx, cache.KeyUserStats, stats, h.config.Cache.UserStatsTTL()); err != nil {
		logrus.WithError(err).Warn("Failed to cache user statistics")
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
		"message": "User statistics retrieved successfully",
	})
}

func (h *handler) ActivateUser(c *gin.Context) {
	h.updateUserStatusHandler(c, models.UserStatusActive, "User activated successfully")
}

func (h *handler) DeactivateUser(c *gin.Context) {
	h.updateUserStatusHandler(c, models.UserStatusInactive, "User deactivated successfully")
}

func (h *handler) SuspendUser(c *gin.Context) {
	h.updateUserStatusHandler(c, models.UserStatusSuspended, "User suspended successfully")
}

func (h *handler) updateUserStatusHandler(c *gin.Context, status, successMessage string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(),
		time.Duration(h.config.App.Timeout)*time.Second)
	defer cancel()

	userID := c.Param("id")
	if userID == "" {
		h.sendErrorResponse(c, http.StatusBadRequest, "User ID is required", "Please provide a valid user ID")
		return
	}

	session := auth.FromContext(c)
	if err := h.executeStatusUpdate(ctx, session, userID, status); err != nil {
		h.handleStatusUpdateError(c, userID, status, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
	}).Info("User status updated successfully")

	if err := h.cacheService.Invalidate(ctx, cache.KeyUserStats); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate user statistics")
	}

	if admin := session.User(); admin != nil {
		if err := h.publisher.Publish(models.ActivityMessage{
			ClientID:    session.ClientID(),
			UserID:      admin.ID,
			Role:        admin.Role,
			ServiceName: models.ServicePortalAdmin,
			Action:      models.ActionUserStatusUpdate,
			TargetID:    userID,
			Metadata:    map[string]string{"status": status},
		}); err != nil {
			logrus.WithError(err).Warn("Failed to publish activity")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": successMessage,
	})
}

func (h *handler) executeStatusUpdate(ctx context.Context, creds clients.Credentials, userID, status string) error {
	switch status {
	case models.UserStatusActive:
		return h.service.ActivateUser(ctx, creds, userID)
	case models.UserStatusInactive:
		return h.service.DeactivateUser(ctx, creds, userID)
	case models.UserStatusSuspended:
		return h.service.SuspendUser(ctx, creds, userID)
	default:
		return models.ErrInvalidStatusFilter
	}
}

func (h *handler) handleStatusUpdateError(c *gin.Context, userID, status string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"user_id": userID,
		"status":  status,
	}).Error("Failed to update user status")

	switch {
	case errors.Is(err, models.ErrUserNotFound):
		h.sendErrorResponse(c, http.StatusNotFound, "User not found", "No user found with the provided ID")
	case errors.Is(err, models.ErrInvalidParams):
		h.sendErrorResponse(c, http.StatusBadRequest, "Invalid user ID", "Please provide a valid user ID")
	case clients.IsUnauthorized(err):
		h.sendErrorResponse(c, http.StatusUnauthorized, "Not authenticated", err.Error())
	default:
		h.sendErrorResponse(c, http.StatusBadGateway, "Failed to update user status", err.Error())
	}
}

func (h *handler) sendErrorResponse(c *gin.Context, statusCode int, error, message string) {
	c.JSON(statusCode, gin.H{
		"error":   error,
		"success": false,
		"message": message,
	})
}
