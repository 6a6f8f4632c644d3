package user

import (
	"context"
	"tutorhub-portal-svc/src/clients"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

// Backend is the user management part of the REST API.
type Backend interface {
	List(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) (*models.GetAllUsersResponse, error)
	UpdateStatus(ctx context.Context, creds clients.Credentials, userID, status string) error
}

type Repository interface {
	GetAllUsers(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) ([]*models.User, int64, error)
	CountUsers(ctx context.Context, creds clients.Credentials, role, status string) (int64, error)
	UpdateStatus(ctx context.Context, creds clients.Credentials, userID, status string) error
}

type userRepository struct {
	backend Backend
}

// NewUserRepository reads users through the backend on behalf of the
// signed-in administrator.
func NewUserRepository(backend Backend) Repository {
	return &userRepository{
		backend: backend,
	}
}

func (r *userRepository) GetAllUsers(ctx context.Context, creds clients.Credentials, req *models.GetAllUsersRequest) ([]*models.User, int64, error) {
	response, err := r.backend.List(ctx, creds, req)
	if err != nil {
		logrus.WithError(err).Error("Failed to list users")
		return nil, 0, err
	}

	total := response.TotalCount
	if total == 0 {
		total = int64(len(response.Users))
	}

	logrus.WithFields(logrus.Fields{
		"count": len(response.Users),
		"total": total,
		"page":  req.Page,
		"limit": req.Limit,
	}).Debug("Retrieved users successfully")

	return response.Users, total, nil
}

// CountUsers asks for a single-item page and reads the total.
func (r *userRepository) CountUsers(ctx context.Context, creds clients.Credentials, role, status string) (int64, error) {
	response, err := r.backend.List(ctx, creds, &models.GetAllUsersRequest{
		Page:   1,
		Limit:  1,
		Role:   role,
		Status: status,
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"role":   role,
			"status": status,
		}).Error("Failed to count users")
		return 0, err
	}
	return response.TotalCount, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, creds clients.Credentials, userID, status string) error {
	if err := r.backend.UpdateStatus(ctx, creds, userID, status); err != nil {
		if clients.IsNotFound(err) {
			return models.ErrUserNotFound
		}
		return err
	}
	return nil
}
