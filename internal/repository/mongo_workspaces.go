package repository

import (
	"context"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type workspaceRepo struct {
	col *mongo.Collection
}

func (r *workspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	return insertOne(ctx, r.col, w)
}

func (r *workspaceRepo) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	return findOne[domain.Workspace](ctx, r.col, bson.M{"_id": id})
}

func (r *workspaceRepo) GetMany(ctx context.Context, ids []string) ([]*domain.Workspace, error) {
	if len(ids) == 0 {
		return []*domain.Workspace{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findMany[domain.Workspace](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (r *workspaceRepo) UpdateName(ctx context.Context, id, name string) error {
	return updateByID(ctx, r.col, id, bson.M{"name": name})
}

func (r *workspaceRepo) UpdateJoinCode(ctx context.Context, id, code string) error {
	return updateByID(ctx, r.col, id, bson.M{"join_code": code})
}

func (r *workspaceRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}
