package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"tutorhub-portal-svc/src/internal/models"
	"tutorhub-portal-svc/src/internal/storage"

	"github.com/sirupsen/logrus"
)

// namespace is the storage owner for portal-wide entries. Client ids are
// uuids so it cannot collide with one.
const namespace = "_portal"

const KeyUserStats = "user_stats"

type Service interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type entry struct {
	ExpiresAt time.Time       `json:"expiresAt"`
	Value     json.RawMessage `json:"value"`
}

type cacheService struct {
	store storage.Storage
	now   func() time.Time
}

// NewCacheService caches JSON values in the client-state store. Expiry is
// kept in the entry so every storage driver honours it.
func NewCacheService(store storage.Storage) Service {
	return &cacheService{
		store: store,
		now:   time.Now,
	}
}

func (c *cacheService) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.store.Get(ctx, namespace, key)
	if err != nil {
		if errors.Is(err, models.ErrStorageNotFound) {
			logrus.WithField("key", key).Debug("Cache miss")
			return false, nil
		}
		logrus.WithError(err).WithField("key", key).Error("Failed to read cache")
		return false, err
	}

	var cached entry
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Dropping unreadable cache entry")
		_ = c.store.Remove(ctx, namespace, key)
		return false, nil
	}

	if !c.now().Before(cached.ExpiresAt) {
		logrus.WithField("key", key).Debug("Cache entry expired")
		_ = c.store.Remove(ctx, namespace, key)
		return false, nil
	}

	if err := json.Unmarshal(cached.Value, dst); err != nil {
		return false, err
	}

	logrus.WithField("key", key).Debug("Cache hit")
	return true, nil
}

func (c *cacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		logrus.WithField("key", key).Debug("Caching disabled for key")
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to marshal value for cache")
		return models.ErrStorageSet
	}

	data, err := json.Marshal(entry{ExpiresAt: c.now().Add(ttl), Value: raw})
	if err != nil {
		return models.ErrStorageSet
	}

	if err := c.store.Set(ctx, namespace, key, string(data)); err != nil {
		logrus.WithError(err).WithField("key", key).Error("Failed to write cache")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"key": key,
		"ttl": ttl,
	}).Debug("Value cached successfully")
	return nil
}

func (c *cacheService) Invalidate(ctx context.Context, keys ...string) error {
	return c.store.Remove(ctx, namespace, keys...)
}
