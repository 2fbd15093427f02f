package repository

import (
	"context"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type memberRepo struct {
	col *mongo.Collection
}

func (r *memberRepo) Create(ctx context.Context, m *domain.Member) error {
	return insertOne(ctx, r.col, m)
}

func (r *memberRepo) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	return findOne[domain.Member](ctx, r.col, bson.M{"_id": id})
}

func (r *memberRepo) GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID string) (*domain.Member, error) {
	return findOne[domain.Member](ctx, r.col, bson.M{"workspace_id": workspaceID, "user_id": userID})
}

func (r *memberRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findMany[domain.Member](ctx, r.col, bson.M{"workspace_id": workspaceID}, opts)
}

func (r *memberRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findMany[domain.Member](ctx, r.col, bson.M{"user_id": userID}, opts)
}

func (r *memberRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.Member, error) {
	out := map[string]*domain.Member{}
	if len(ids) == 0 {
		return out, nil
	}
	members, err := findMany[domain.Member](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		out[m.ID] = m
	}
	return out, nil
}

func (r *memberRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return deleteMany(ctx, r.col, bson.M{"workspace_id": workspaceID})
}
