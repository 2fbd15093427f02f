package repository

import (
	"context"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type channelRepo struct {
	col *mongo.Collection
}

func (r *channelRepo) Create(ctx context.Context, c *domain.Channel) error {
	return insertOne(ctx, r.col, c)
}

func (r *channelRepo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	return findOne[domain.Channel](ctx, r.col, bson.M{"_id": id})
}

func (r *channelRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Channel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return findMany[domain.Channel](ctx, r.col, bson.M{"workspace_id": workspaceID}, opts)
}

func (r *channelRepo) UpdateName(ctx context.Context, id, name string) error {
	return updateByID(ctx, r.col, id, bson.M{"name": name})
}

func (r *channelRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}

func (r *channelRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return deleteMany(ctx, r.col, bson.M{"workspace_id": workspaceID})
}

type conversationRepo struct {
	col *mongo.Collection
}

func (r *conversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	return insertOne(ctx, r.col, c)
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return findOne[domain.Conversation](ctx, r.col, bson.M{"_id": id})
}

// FindBetween matches the pair in either order.
func (r *conversationRepo) FindBetween(ctx context.Context, workspaceID, memberA, memberB string) (*domain.Conversation, error) {
	return findOne[domain.Conversation](ctx, r.col, bson.M{
		"workspace_id": workspaceID,
		"$or": []bson.M{
			{"member_one_id": memberA, "member_two_id": memberB},
			{"member_one_id": memberB, "member_two_id": memberA},
		},
	})
}

func (r *conversationRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return deleteMany(ctx, r.col, bson.M{"workspace_id": workspaceID})
}
