package store

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roommatch/logging"
	"roommatch/models"
)

type MongoMessaging struct {
	coll   *mongo.Collection
	clock  clockwork.Clock
	logger logging.Logger
	typing *typingHub
}

func NewMongoMessaging(coll *mongo.Collection, clock clockwork.Clock, logger logging.Logger) *MongoMessaging {
	return &MongoMessaging{
		coll:   coll,
		clock:  clock,
		logger: logger.With("component", "mongo_messaging"),
		typing: newTypingHub(),
	}
}

var _ Messaging = (*MongoMessaging)(nil)

func (s *MongoMessaging) Send(ctx context.Context, conversationID string, msg models.Message) (models.SendResult, error) {
	msg, err := prepareMessage(conversationID, msg, s.clock)
	if err != nil {
		return models.SendResult{}, err
	}
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return models.SendResult{}, fmt.Errorf("insert message into %s: %w", conversationID, err)
	}
	return models.SendResult{Success: true, ID: msg.ID}, nil
}

func (s *MongoMessaging) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages for %s: %w", conversationID, err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages for %s: %w", conversationID, err)
	}
	return messages, nil
}

func (s *MongoMessaging) Subscribe(ctx context.Context, conversationID string, onChange func([]models.Message)) (Unsubscribe, error) {
	history, err := s.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	onChange(history)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.conversationId", Value: conversationID},
		}}},
	}
	stream, err := s.coll.Watch(watchCtx, pipeline)
	if err != nil {
		s.logger.Warn(ctx, "message change stream unavailable", "conversationId", conversationID, "error", err)
		return Unsubscribe(cancel), nil
	}

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			history, err := s.History(watchCtx, conversationID)
			if err != nil {
				s.logger.Warn(watchCtx, "re-read history failed", "conversationId", conversationID, "error", err)
				continue
			}
			onChange(history)
		}
	}()

	return Unsubscribe(cancel), nil
}

func (s *MongoMessaging) SetTyping(_ context.Context, conversationID, userID string, typing bool) error {
	s.typing.publish(models.TypingState{ConversationID: conversationID, UserID: userID, Typing: typing})
	return nil
}

func (s *MongoMessaging) SubscribeTyping(conversationID string, onChange func(models.TypingState)) Unsubscribe {
	return s.typing.subscribe(conversationID, onChange)
}
