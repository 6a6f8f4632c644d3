package user

import (
	"context"
	"math"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	GetAllUsers(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) (*ListResponse, error)
	GetUserStats(ctx context.Context, creds clients.Credentials) (*Stats, error)
	ActivateUser(ctx context.Context, creds clients.Credentials, userID string) error
	DeactivateUser(ctx context.Context, creds clients.Credentials, userID string) error
	SuspendUser(ctx context.Context, creds clients.Credentials, userID string) error
}

type userService struct {
	userRepository Repository
	cfg            *config.Configuration
}

func NewUserService(userRepository Repository, cfg *config.Configuration) Service {
	return &userService{
		userRepository: userRepository,
		cfg:            cfg,
	}
}

func (s *userService) GetAllUsers(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) (*ListResponse, error) {
	// Validate and set defaults
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.MinQueryLimit
	}
	if req.Limit > s.cfg.Search.MaxQueryLimit {
		req.Limit = s.cfg.Search.MaxQueryLimit
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	if req.Role != "" && !models.IsValidRole(req.Role) {
		return nil, models.ErrInvalidRoleFilter
	}
	if req.Status != "" && !models.IsValidUserStatus(req.Status) {
		return nil, models.ErrInvalidStatusFilter
	}

	logrus.WithFields(logrus.Fields{
		"page":   req.Page,
		"limit":  req.Limit,
		"role":   req.Role,
		"status": req.Status,
		"search": req.Search,
	}).Debug("Getting all users")

	users, totalCount, err := s.userRepository.GetAllUsers(ctx, creds, req)
	if err != nil {
		return nil, err
	}

	profiles := make([]*Profile, len(users))
	for i, user := range users {
		profiles[i] = ToProfile(user)
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(req.Limit)))

	logrus.WithFields(logrus.Fields{
		"users_count": len(profiles),
		"total_count": totalCount,
		"total_pages": totalPages,
	}).Info("Successfully retrieved users")

	return &ListResponse{
		Users:      profiles,
		TotalCount: totalCount,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetUserStats counts users per status and role, one backend query each.
func (s *userService) GetUserStats(ctx context.Context, creds clients.Credentials) (*Stats, error) {
	stats := &Stats{}
	g, ctx := errgroup.WithContext(ctx)

	count := func(target *int64, role, status string) {
		g.Go(func() error {
			n, err := s.userRepository.CountUsers(ctx, creds, role, status)
			if err != nil {
				return err
			}
			*target = n
			return nil
		})
	}

	count(&stats.Total, "", "")
	count(&stats.Active, "", models.UserStatusActive)
	count(&stats.Inactive, "", models.UserStatusInactive)
	count(&stats.Suspended, "", models.UserStatusSuspended)
	count(&stats.Students, models.RoleStudent, "")
	count(&stats.Tutors, models.RoleTutor, "")

	staff := make([]int64, len(models.AdminRoles))
	for i, role := range models.AdminRoles {
		count(&staff[i], role, "")
	}

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Failed to get user statistics")
		return nil, err
	}
	for _, n := range staff {
		stats.Staff += n
	}

	logrus.WithFields(logrus.Fields{
		"total":     stats.Total,
		"active":    stats.Active,
		"suspended": stats.Suspended,
		"students":  stats.Students,
		"tutors":    stats.Tutors,
	}).Info("Successfully retrieved user statistics")

	return stats, nil
}

func (s *userService) ActivateUser(ctx context.Context, creds clients.Credentials, userID string) error {
	return s.updateStatus(ctx, creds, userID, models.UserStatusActive)
}

func (s *userService) DeactivateUser(ctx context.Context, creds clients.Credentials, userID string) error {
	return s.updateStatus(ctx, creds, userID, models.UserStatusInactive)
}

func (s *userService) SuspendUser(ctx context.Context, creds clients.Credentials, userID string) error {
	return s.updateStatus(ctx, creds, userID, models.UserStatusSuspended)
}

func (s *userService) updateStatus(ctx context.Context, creds clients.Credentials, userID, status string) error {
	if userID == "" {
		return models.ErrInvalidParams
	}
	return s.userRepository.UpdateStatus(ctx, creds, userID, status)
}
