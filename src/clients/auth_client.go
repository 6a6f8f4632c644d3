package clients

import (
	"context"
	"fmt"
	"net/http"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

// AuthClient handles the /auth endpoints of the backend
type AuthClient struct {
	api *APIClient
}

// RefreshResult holds what /auth/refresh hands back. RefreshToken is only
// set when the backend rotates it.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// NewAuthClient creates new auth endpoints client
func NewAuthClient(api *APIClient) *AuthClient {
	return &AuthClient{api: api}
}

// Login exchanges email and password for a token pair
func (c *AuthClient) Login(ctx context.Context, credentials models.Credentials) (*models.AuthPayload, error) {
	return c.authenticate(ctx, "/auth/login", credentials)
}

// Register creates an account and signs it in
func (c *AuthClient) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthPayload, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// SSOLogin exchanges identity provider tokens for a portal token pair
func (c *AuthClient) SSOLogin(ctx context.Context, credentials models.SSOCredentials) (*models.AuthPayload, error) {
	return c.authenticate(ctx, "/auth/sso", credentials)
}

func (c *AuthClient) authenticate(ctx context.Context, path string, body interface{}) (*models.AuthPayload, error) {
	env, err := c.api.call(ctx, nil, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var payload models.AuthPayload
	if err := env.decode(&payload); err != nil {
		return nil, err
	}

	if payload.AccessToken == "" || payload.User == nil {
		return nil, fmt.Errorf("backend %s response is missing tokens or user", path)
	}

	logrus.WithFields(logrus.Fields{
		"path":    path,
		"user_id": payload.User.ID,
		"role":    payload.User.Role,
	}).Debug("Backend authentication succeeded")

	return &payload, nil
}

// Refresh trades a refresh token for a new access token
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	env, err := c.api.call(ctx, nil, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	var result RefreshResult
	if err := env.decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("backend refresh response has no access token")
	}
	return &result, nil
}

// Logout invalidates the refresh token on the backend
func (c *AuthClient) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.api.call(ctx, nil, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": refreshToken,
	})
	return err
}

// Me returns the user the access token belongs to
func (c *AuthClient) Me(ctx context.Context, creds Credentials) (*models.User, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := env.decodeField("user", &user); err != nil {
		return nil, err
	}
	if isZeroUser(user) {
		if err := env.decode(&user); err != nil {
			return nil, err
		}
	}
	if isZeroUser(user) {
		return nil, &APIError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: "user not found"}
	}
	return &user, nil
}

// Permissions returns the permission names granted to the current user
func (c *AuthClient) Permissions(ctx context.Context, creds Credentials) ([]string, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, "/auth/permissions", nil)
	if err != nil {
		return nil, err
	}

	permissions := []string{}
	if err := env.decodeField("permissions", &permissions); err != nil {
		return nil, err
	}
	return permissions, nil
}

func isZeroUser(u models.User) bool {
	return u.ID == "" && u.Email == "" && u.Role == ""
}
