package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
	"tutorhub-portal-svc/src/internal/config"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPattern = "%s:%s:%s" // prefix:clientID:key

type redisStorage struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStorage stores client state under prefix:clientID:key with a TTL
// that slides forward on every read.
func NewRedisStorage(client *redis.Client, cfg *config.StorageConfig) Storage {
	return &redisStorage{
		client: client,
		ttl:    time.Duration(cfg.TTLMinutes) * time.Minute,
		prefix: cfg.KeyPrefix,
	}
}

func (s *redisStorage) key(clientID, key string) string {
	return fmt.Sprintf(redisKeyPattern, s.prefix, clientID, key)
}

func (s *redisStorage) Get(ctx context.Context, clientID, key string) (string, error) {
	redisKey := s.key(clientID, key)
	logrus.WithField("key", redisKey).Debug("Getting client state from cache")

	value, err := s.client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", redisKey).Debug("Client state not found in cache")
			return "", models.ErrStorageNotFound
		}
		logrus.WithError(err).WithField("key", redisKey).Error("Failed to get client state from cache")
		return "", models.ErrStorageGet
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, redisKey, s.ttl).Err(); err != nil {
			logrus.WithError(err).WithField("key", redisKey).Warn("Failed to extend client state TTL")
		}
	}

	return value, nil
}

func (s *redisStorage) Set(ctx context.Context, clientID, key, value string) error {
	redisKey := s.key(clientID, key)

	err := s.client.Set(ctx, redisKey, value, s.ttl).Err()
	if err != nil {
		logrus.WithError(err).WithField("key", redisKey).Error("Failed to cache client state")
		return models.ErrStorageSet
	}

	logrus.WithField("key", redisKey).Debug("Client state cached successfully")
	return nil
}

func (s *redisStorage) Remove(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = s.key(clientID, key)
	}

	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		logrus.WithError(err).WithField("client_id", clientID).Error("Failed to delete client state from cache")
		return models.ErrStorageDelete
	}
	return nil
}

func (s *redisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
