package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roommatch/logging"
	"roommatch/models"
)

// MongoProfiles stores profiles in a MongoDB collection. Subscriptions use a
// change stream, which requires a replica set; without one only the initial
// snapshot is delivered and the engine's periodic sync fills the gap.
type MongoProfiles struct {
	coll   *mongo.Collection
	logger logging.Logger
}

func NewMongoProfiles(coll *mongo.Collection, logger logging.Logger) *MongoProfiles {
	return &MongoProfiles{coll: coll, logger: logger.With("component", "mongo_profiles")}
}

var _ ProfileStore = (*MongoProfiles)(nil)

func (s *MongoProfiles) Get(ctx context.Context, id string) (models.Profile, error) {
	var p models.Profile
	err := s.coll.FindOne(ctx, bson.M{"$or": bson.A{
		bson.M{"_id": id},
		bson.M{"userId": id},
	}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	p, ok := NormalizeProfile(p)
	if !ok {
		return models.Profile{}, fmt.Errorf("profile %s: %w", id, ErrMissingID)
	}
	return p, nil
}

func (s *MongoProfiles) GetAll(ctx context.Context) ([]models.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []models.Profile
	skipped := 0
	for cursor.Next(ctx) {
		var p models.Profile
		if err := cursor.Decode(&p); err != nil {
			skipped++
			continue
		}
		raw = append(raw, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	profiles, dropped := NormalizeProfiles(raw)
	if skipped+dropped > 0 {
		s.logger.Warn(ctx, "skipped inconsistent profile documents", "undecodable", skipped, "noIdentity", dropped)
	}
	return profiles, nil
}

func (s *MongoProfiles) Put(ctx context.Context, p models.Profile) error {
	p, ok := NormalizeProfile(p)
	if !ok {
		return ErrMissingID
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *MongoProfiles) Subscribe(ctx context.Context, onChange func([]models.Profile)) (Unsubscribe, error) {
	snapshot, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	onChange(snapshot)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.coll.Watch(watchCtx, mongo.Pipeline{})
	if err != nil {
		s.logger.Warn(ctx, "profile change stream unavailable, relying on periodic sync", "error", err)
		return Unsubscribe(cancel), nil
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			profiles, err := s.GetAll(watchCtx)
			if err != nil {
				s.logger.Warn(watchCtx, "re-read after change failed", "error", err)
				continue
			}
			onChange(profiles)
		}
		if watchCtx.Err() == nil {
			s.logger.Warn(watchCtx, "profile change stream closed", "error", stream.Err())
		}
	}()

	return Unsubscribe(cancel), nil
}
