package storage

import (
	"context"
	"errors"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

type tieredStorage struct {
	cache   Storage
	durable Storage
}

// NewTieredStorage reads the cache first and falls back to the durable
// store, re-caching what it finds there. Writes go to both.
func NewTieredStorage(cache, durable Storage) Storage {
	return &tieredStorage{cache: cache, durable: durable}
}

func (s *tieredStorage) Get(ctx context.Context, clientID, key string) (string, error) {
	value, err := s.cache.Get(ctx, clientID, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, models.ErrStorageNotFound) {
		logrus.WithError(err).WithField("client_id", clientID).Warn("Cache read failed, falling back to durable storage")
	}

	value, err = s.durable.Get(ctx, clientID, key)
	if err != nil {
		return "", err
	}

	if err := s.cache.Set(ctx, clientID, key, value); err != nil {
		logrus.WithError(err).WithField("client_id", clientID).Warn("Failed to re-cache client state")
	}

	logrus.WithFields(logrus.Fields{
		"client_id": clientID,
		"key":       key,
	}).Debug("Client state restored from durable storage")
	return value, nil
}

func (s *tieredStorage) Set(ctx context.Context, clientID, key, value string) error {
	if err := s.durable.Set(ctx, clientID, key, value); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, clientID, key, value); err != nil {
		// A stale cached value would shadow the durable one on read.
		logrus.WithError(err).WithField("client_id", clientID).Warn("Failed to cache client state, evicting cached copy")
		if err := s.cache.Remove(ctx, clientID, key); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"client_id": clientID,
				"key":       key,
			}).Error("Failed to evict stale cached client state")
		}
	}
	return nil
}

func (s *tieredStorage) Remove(ctx context.Context, clientID string, keys ...string) error {
	cacheErr := s.cache.Remove(ctx, clientID, keys...)
	if cacheErr != nil {
		cacheErr = s.evictEach(ctx, clientID, keys)
	}
	if err := s.durable.Remove(ctx, clientID, keys...); err != nil {
		return err
	}
	return cacheErr
}

// evictEach retries a failed cache removal one key at a time and returns the
// last error of the keys that still could not be removed.
func (s *tieredStorage) evictEach(ctx context.Context, clientID string, keys []string) error {
	var lastErr error
	for _, key := range keys {
		if err := s.cache.Remove(ctx, clientID, key); err != nil {
			lastErr = err
			logrus.WithError(err).WithFields(logrus.Fields{
				"client_id": clientID,
				"key":       key,
			}).Error("Failed to remove cached client state")
		}
	}
	return lastErr
}

func (s *tieredStorage) Ping(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return err
	}
	return s.durable.Ping(ctx)
}
