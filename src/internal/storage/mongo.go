package storage

import (
	"context"
	"errors"
	"time"
	"tutorhub-portal-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStorage struct {
	collection *mongo.Collection
}

// clientState is one document per portal client.
type clientState struct {
	ClientID  string            `bson:"client_id"`
	Values    map[string]string `bson:"values"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

func NewMongoStorage(db *mongo.Database, collectionName string) Storage {
	return &mongoStorage{collection: db.Collection(collectionName)}
}

func (s *mongoStorage) Get(ctx context.Context, clientID, key string) (string, error) {
	var state clientState
	filter := bson.M{"client_id": clientID}

	err := s.collection.FindOne(ctx, filter).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", models.ErrStorageNotFound
		}
		logrus.WithError(err).WithField("client_id", clientID).Error("Failed to get client state")
		return "", models.ErrStorageGet
	}

	value, ok := state.Values[key]
	if !ok {
		return "", models.ErrStorageNotFound
	}
	return value, nil
}

func (s *mongoStorage) Set(ctx context.Context, clientID, key, value string) error {
	filter := bson.M{"client_id": clientID}
	update := bson.M{
		"$set": bson.M{
			"values." + key: value,
			"updated_at":    time.Now(),
		},
	}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"client_id": clientID,
			"key":       key,
		}).Error("Failed to store client state")
		return models.ErrStorageSet
	}
	return nil
}

func (s *mongoStorage) Remove(ctx context.Context, clientID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	unset := bson.M{}
	for _, key := range keys {
		unset["values."+key] = ""
	}

	filter := bson.M{"client_id": clientID}
	update := bson.M{
		"$unset": unset,
		"$set":   bson.M{"updated_at": time.Now()},
	}

	_, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithError(err).WithField("client_id", clientID).Error("Failed to remove client state")
		return models.ErrStorageDelete
	}
	return nil
}

func (s *mongoStorage) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}
