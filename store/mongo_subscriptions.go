package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roommatch/models"
)

type MongoSubscriptions struct {
	coll *mongo.Collection
}

func NewMongoSubscriptions(coll *mongo.Collection) *MongoSubscriptions {
	return &MongoSubscriptions{coll: coll}
}

var _ PushSubscriptions = (*MongoSubscriptions)(nil)

// Save upserts: a user has at most one subscription.
func (s *MongoSubscriptions) Save(ctx context.Context, sub models.PushSubscription) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": sub.UserID},
		bson.M{"$set": sub},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save push subscription for %s: %w", sub.UserID, err)
	}
	return nil
}

func (s *MongoSubscriptions) All(ctx context.Context) ([]models.PushSubscription, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find push subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	subs := []models.PushSubscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode push subscriptions: %w", err)
	}
	return subs, nil
}

func (s *MongoSubscriptions) Delete(ctx context.Context, userID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("delete push subscription for %s: %w", userID, err)
	}
	return nil
}
