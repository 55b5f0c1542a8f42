package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository/entity"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
)

// MongoSessionRepository implements SessionRepository using MongoDB. A TTL
// index lets Mongo discard expired sessions on its own.
type MongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a session repository backed by the
// "oauth_sessions" collection.
func NewMongoSessionRepository(db *mongo.Database) ports.SessionRepository {
	collection := db.Collection("oauth_sessions")

	stateIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "state", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	_, _ = collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{stateIndex, ttlIndex})

	return &MongoSessionRepository{collection: collection}
}

// Create inserts a new session.
func (r *MongoSessionRepository) Create(ctx context.Context, session *domain.OAuthSession) error {
	doc := entity.SessionDocFromDomain(session)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create oauth session: %w", err)
	}
	return nil
}

// GetByState retrieves a session by its CSRF state. Expired sessions are
// treated as absent even if Mongo has not reaped them yet.
func (r *MongoSessionRepository) GetByState(ctx context.Context, state string) (*domain.OAuthSession, error) {
	var doc entity.SessionDoc

	err := r.collection.FindOne(ctx, bson.M{"state": state}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth session: %w", err)
	}

	if time.Now().After(doc.ExpiresAt) {
		return nil, nil
	}
	return doc.ToDomain(), nil
}

// Delete removes a session by state. Used after a successful callback so a
// state cannot be replayed.
func (r *MongoSessionRepository) Delete(ctx context.Context, state string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"state": state}); err != nil {
		return fmt.Errorf("failed to delete oauth session: %w", err)
	}
	return nil
}
