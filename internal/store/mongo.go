package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nearbyconnect/nearby/internal/domain"
)

// Mongo implements UserStore, MessageStore and LocationStore against a
// MongoDB database with users, messages and locations collections.
type Mongo struct {
	users     *mongo.Collection
	messages  *mongo.Collection
	locations *mongo.Collection
	client    *mongo.Client
}

// NewMongo connects to MongoDB and returns the store.
func NewMongo(ctx context.Context, url, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	return &Mongo{
		users:     db.Collection("users"),
		messages:  db.Collection("messages"),
		locations: db.Collection("locations"),
		client:    client,
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Exists implements UserStore.
func (m *Mongo) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := m.users.CountDocuments(ctx, bson.M{"id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	return n > 0, nil
}

// Insert implements MessageStore.
func (m *Mongo) Insert(ctx context.Context, msg *domain.OutboundMessage) error {
	if _, err := m.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist message %s: %w", msg.ID, err)
	}
	return nil
}

// ListForUser implements MessageStore.
func (m *Mongo) ListForUser(ctx context.Context, userID string, limit int64) ([]domain.OutboundMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"recipient_ids": userID},
	}}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit)

	cursor, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var messages []domain.OutboundMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages for %s: %w", userID, err)
	}
	return messages, nil
}

// Upsert implements LocationStore. At most one document per user survives.
func (m *Mongo) Upsert(ctx context.Context, pt domain.LocationPoint) error {
	filter := bson.M{"user_id": pt.UserID}
	update := bson.M{"$set": pt}
	if _, err := m.locations.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to persist location for %s: %w", pt.UserID, err)
	}
	return nil
}
