package repository

import (
	"context"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type reactionRepo struct {
	col *mongo.Collection
}

func (r *reactionRepo) Create(ctx context.Context, re *domain.Reaction) error {
	return insertOne(ctx, r.col, re)
}

func (r *reactionRepo) Find(ctx context.Context, messageID, memberID, value string) (*domain.Reaction, error) {
	return findOne[domain.Reaction](ctx, r.col, bson.M{"message_id": messageID, "member_id": memberID, "value": value})
}

func (r *reactionRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}

func (r *reactionRepo) ListByMessages(ctx context.Context, messageIDs []string) (map[string][]*domain.Reaction, error) {
	out := map[string][]*domain.Reaction{}
	if len(messageIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	rows, err := findMany[domain.Reaction](ctx, r.col, bson.M{"message_id": bson.M{"$in": messageIDs}}, opts)
	if err != nil {
		return nil, err
	}
	for _, re := range rows {
		out[re.MessageID] = append(out[re.MessageID], re)
	}
	return out, nil
}

func (r *reactionRepo) DeleteByMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return deleteMany(ctx, r.col, bson.M{"message_id": bson.M{"$in": messageIDs}})
}

func (r *reactionRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return deleteMany(ctx, r.col, bson.M{"workspace_id": workspaceID})
}
