package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"tutorhub-portal-svc/src/internal/models"
)

// ChatClient handles conversation and message endpoints
type ChatClient struct {
	api *APIClient
}

func NewChatClient(api *APIClient) *ChatClient {
	return &ChatClient{api: api}
}

func (c *ChatClient) Conversations(ctx context.Context, creds Credentials) ([]models.Conversation, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, "/chat/conversations", nil)
	if err != nil {
		return nil, err
	}

	conversations := []models.Conversation{}
	if err := env.decodeField("conversations", &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// CreateConversation opens (or returns the existing) conversation with userID
func (c *ChatClient) CreateConversation(ctx context.Context, creds Credentials, userID string) (*models.Conversation, error) {
	env, err := c.api.call(ctx, creds, http.MethodPost, "/chat/conversations", models.CreateConversationRequest{UserID: userID})
	if err != nil {
		return nil, err
	}

	var conversation models.Conversation
	if err := env.decodeField("conversation", &conversation); err != nil {
		return nil, err
	}
	if conversation.ID == "" {
		if err := env.decode(&conversation); err != nil {
			return nil, err
		}
	}
	return &conversation, nil
}

func (c *ChatClient) Messages(ctx context.Context, creds Credentials, conversationID string) ([]models.Message, error) {
	path := fmt.Sprintf("/chat/conversations/%s/messages", url.PathEscape(conversationID))
	env, err := c.api.call(ctx, creds, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	messages := []models.Message{}
	if err := env.decodeField("messages", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *ChatClient) Send(ctx context.Context, creds Credentials, conversationID, content string) (*models.Message, error) {
	path := fmt.Sprintf("/chat/conversations/%s/messages", url.PathEscape(conversationID))
	env, err := c.api.call(ctx, creds, http.MethodPost, path, models.SendMessageRequest{Content: content})
	if err != nil {
		return nil, err
	}

	var message models.Message
	if err := env.decodeField("message", &message); err != nil {
		return nil, err
	}
	if message.ID == "" {
		if err := env.decode(&message); err != nil {
			return nil, err
		}
	}
	if message.ConversationID == "" {
		message.ConversationID = conversationID
	}
	return &message, nil
}

func (c *ChatClient) MarkRead(ctx context.Context, creds Credentials, conversationID string) error {
	path := fmt.Sprintf("/chat/conversations/%s/read", url.PathEscape(conversationID))
	_, err := c.api.call(ctx, creds, http.MethodPut, path, nil)
	return err
}

func (c *ChatClient) SearchUsers(ctx context.Context, creds Credentials, query string) ([]models.User, error) {
	env, err := c.api.call(ctx, creds, http.MethodGet, withQuery("/chat/users/search", url.Values{"q": {query}}), nil)
	if err != nil {
		return nil, err
	}

	users := []models.User{}
	if err := env.decodeField("users", &users); err != nil {
		return nil, err
	}
	return users, nil
}
