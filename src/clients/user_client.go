package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"tutorhub-portal-svc/src/internal/models"
)

// UserClient handles the admin user management endpoints
type UserClient struct {
	api *APIClient
}

func NewUserClient(api *APIClient) *UserClient {
	return &UserClient{api: api}
}

func (c *UserClient) List(ctx context.Context, creds Credentials, req *models.GetAllUsersRequest) (*models.GetAllUsersResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("limit", strconv.Itoa(req.Limit))
	if req.Role != "" {
		query.Set("role", req.Role)
	}
	if req.Status != "" {
		query.Set("status", req.Status)
	}
	if req.Search != "" {
		query.Set("search", req.Search)
	}

	env, err := c.api.call(ctx, creds, http.MethodGet, withQuery("/users", query), nil)
	if err != nil {
		return nil, err
	}

	users := []*models.User{}
	if err := env.decodeField("users", &users); err != nil {
		return nil, err
	}

	var response models.GetAllUsersResponse
	if hasValue(env.Data) && bytes.TrimSpace(env.Data)[0] == '{' {
		if err := json.Unmarshal(env.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to decode user page: %w", err)
		}
	}
	response.Users = users
	if response.Page == 0 {
		response.Page = req.Page
	}
	if response.Limit == 0 {
		response.Limit = req.Limit
	}
	return &response, nil
}

func (c *UserClient) UpdateStatus(ctx context.Context, creds Credentials, userID, status string) error {
	path := fmt.Sprintf("/users/%s/status", url.PathEscape(userID))
	_, err := c.api.call(ctx, creds, http.MethodPatch, path, map[string]string{"status": status})
	return err
}
