package store

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roommatch/models"
)

type MongoPins struct {
	coll  *mongo.Collection
	clock clockwork.Clock
}

func NewMongoPins(coll *mongo.Collection, clock clockwork.Clock) *MongoPins {
	return &MongoPins{coll: coll, clock: clock}
}

var _ PinStore = (*MongoPins)(nil)

func (s *MongoPins) Pin(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfPin
	}
	pin := models.Pin{UserID: userID, TargetID: targetID, CreatedAt: s.clock.Now().UnixMilli()}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "targetId": targetID},
		bson.M{"$setOnInsert": pin},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("pin %s for %s: %w", targetID, userID, err)
	}
	return nil
}

func (s *MongoPins) Unpin(ctx context.Context, userID, targetID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID, "targetId": targetID}); err != nil {
		return fmt.Errorf("unpin %s for %s: %w", targetID, userID, err)
	}
	return nil
}

func (s *MongoPins) Pins(ctx context.Context, userID string) ([]models.Pin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "targetId", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pins for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	pins := []models.Pin{}
	if err := cursor.All(ctx, &pins); err != nil {
		return nil, fmt.Errorf("decode pins for %s: %w", userID, err)
	}
	return pins, nil
}
