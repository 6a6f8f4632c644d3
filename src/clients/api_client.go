package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"tutorhub-portal-svc/src/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
	portalUserAgent     = "tutorhub-portal/1.0"
)

// Credentials supplies the bearer token for authorized backend calls and
// knows how to obtain a fresh one.
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// APIClient talks to the tutoring REST backend.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// envelope is the response shape every backend endpoint uses.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`

	raw []byte
}

func NewAPIClient(cfg *config.Configuration) *APIClient {
	return NewAPIClientWithHTTP(cfg.Backend.BaseURL, &http.Client{
		Timeout: time.Duration(cfg.Backend.Timeout) * time.Second,
	})
}

func NewAPIClientWithHTTP(baseURL string, httpClient *http.Client) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend base URL.
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// call performs a request. With non-nil creds the request is authorized and
// an expired-token rejection triggers one refresh and exactly one retry.
func (c *APIClient) call(ctx context.Context, creds Credentials, method, path string, body interface{}) (*envelope, error) {
	token := ""
	if creds != nil {
		var err error
		token, err = creds.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
	}

	env, err := c.roundTrip(ctx, token, method, path, body)
	if creds == nil || !IsTokenExpired(err) {
		return env, err
	}

	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("Access token expired, refreshing before retry")

	token, refreshErr := creds.Refresh(ctx)
	if refreshErr != nil {
		return nil, fmt.Errorf("refresh after expired token: %w", refreshErr)
	}

	return c.roundTrip(ctx, token, method, path, body)
}

func (c *APIClient) roundTrip(ctx context.Context, token, method, path string, body interface{}) (*envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerUserAgent, portalUserAgent)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		backendRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	backendRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	env := &envelope{raw: respBody}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, env); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || (env.Success != nil && !*env.Success) {
		return nil, env.apiError(resp.StatusCode, respBody)
	}

	return env, nil
}

func (e *envelope) apiError(statusCode int, body []byte) *APIError {
	message := e.Message
	if message == "" {
		message = e.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Code:       e.Code,
		Message:    message,
	}
}

// decode unmarshals the data section, or the whole body when the backend
// left the payload at the top level.
func (e *envelope) decode(out interface{}) error {
	if out == nil {
		return nil
	}
	if hasValue(e.Data) {
		if err := json.Unmarshal(e.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
		return nil
	}
	if len(bytes.TrimSpace(e.raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeField looks for key in data, then at the top level. It accepts
// data itself being the value as well. Missing values leave out untouched.
func (e *envelope) decodeField(key string, out interface{}) error {
	if hasValue(e.Data) {
		trimmed := bytes.TrimSpace(e.Data)
		if trimmed[0] != '{' {
			return json.Unmarshal(trimmed, out)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
		if v, ok := fields[key]; ok && hasValue(v) {
			return json.Unmarshal(v, out)
		}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(e.raw, &top); err != nil {
		return nil
	}
	if v, ok := top[key]; ok && hasValue(v) {
		return json.Unmarshal(v, out)
	}
	return nil
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
