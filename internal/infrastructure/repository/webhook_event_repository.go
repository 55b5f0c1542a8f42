package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/infrastructure/repository/entity"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
)

// MongoWebhookEventRepository implements WebhookEventRepository using
// MongoDB.
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

// NewMongoWebhookEventRepository creates a webhook-event repository backed by
// the "webhook_events" collection.
func NewMongoWebhookEventRepository(db *mongo.Database) ports.WebhookEventRepository {
	collection := db.Collection("webhook_events")

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "integrationId", Value: 1}, {Key: "processed", Value: 1}, {Key: "receivedAt", Value: 1}},
	}
	_, _ = collection.Indexes().CreateOne(context.Background(), indexModel)

	return &MongoWebhookEventRepository{collection: collection}
}

// Get retrieves an event by id. Returns (nil, nil) when absent.
func (r *MongoWebhookEventRepository) Get(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	var doc entity.WebhookEventDoc

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return doc.ToDomain(), nil
}

// Put upserts an event by id.
func (r *MongoWebhookEventRepository) Put(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.WebhookEventDocFromDomain(event)

	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": event.ID}, update, opts); err != nil {
		return fmt.Errorf("failed to save webhook event: %w", err)
	}
	return nil
}

// ListUnprocessed retrieves up to limit unprocessed events for an
// integration, oldest first.
func (r *MongoWebhookEventRepository) ListUnprocessed(ctx context.Context, integrationID string, limit int) ([]*domain.WebhookEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "receivedAt", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	filter := bson.M{"integrationId": integrationID, "processed": false}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*domain.WebhookEvent
	for cursor.Next(ctx) {
		var doc entity.WebhookEventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		events = append(events, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}
