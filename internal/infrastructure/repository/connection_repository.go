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

// MongoConnectionRepository implements ConnectionRepository using MongoDB.
// Credential fields are encrypted before they reach the collection and
// decrypted on the way out; domain connections never carry ciphertext.
type MongoConnectionRepository struct {
	collection *mongo.Collection
	encryption ports.EncryptionService
}

// NewMongoConnectionRepository creates a connection repository backed by the
// "connections" collection, indexed by tenant id for listing.
func NewMongoConnectionRepository(db *mongo.Database, encryption ports.EncryptionService) ports.ConnectionRepository {
	collection := db.Collection("connections")

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "tenantId", Value: 1}},
	}
	_, _ = collection.Indexes().CreateOne(context.Background(), indexModel)

	return &MongoConnectionRepository{collection: collection, encryption: encryption}
}

// Get retrieves a connection by id. Returns (nil, nil) when absent.
func (r *MongoConnectionRepository) Get(ctx context.Context, id string) (*domain.Connection, error) {
	var doc entity.ConnectionDoc

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	if err := decryptCredentials(r.encryption, &doc); err != nil {
		return nil, err
	}
	return doc.ToDomain(), nil
}

// Put upserts a connection by id.
func (r *MongoConnectionRepository) Put(ctx context.Context, conn *domain.Connection) error {
	doc := entity.ConnectionDocFromDomain(conn)
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if err := encryptCredentials(r.encryption, doc); err != nil {
		return err
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": conn.ID}
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// ListByTenant retrieves all connections owned by a tenant.
func (r *MongoConnectionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"tenantId": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var conns []*domain.Connection
	for cursor.Next(ctx) {
		var doc entity.ConnectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		if err := decryptCredentials(r.encryption, &doc); err != nil {
			return nil, err
		}
		conns = append(conns, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return conns, nil
}

// encryptCredentials seals the secret fields of a connection document in
// place before storage.
func encryptCredentials(enc ports.EncryptionService, doc *entity.ConnectionDoc) error {
	var err error
	if doc.AccessToken, err = enc.Encrypt(doc.AccessToken); err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if doc.RefreshToken, err = enc.Encrypt(doc.RefreshToken); err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	if doc.APIKey, err = enc.Encrypt(doc.APIKey); err != nil {
		return fmt.Errorf("failed to encrypt api key: %w", err)
	}
	return nil
}

// decryptCredentials reverses encryptCredentials on a loaded document.
func decryptCredentials(enc ports.EncryptionService, doc *entity.ConnectionDoc) error {
	var err error
	if doc.AccessToken, err = enc.Decrypt(doc.AccessToken); err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if doc.RefreshToken, err = enc.Decrypt(doc.RefreshToken); err != nil {
		return fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if doc.APIKey, err = enc.Decrypt(doc.APIKey); err != nil {
		return fmt.Errorf("failed to decrypt api key: %w", err)
	}
	return nil
}
