package repository

import (
	"context"
	"strings"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepo struct {
	col *mongo.Collection
}

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(u.Email)
	return insertOne(ctx, r.col, u)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.M{"_id": id})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.M{"email": strings.ToLower(email)})
}

func (r *userRepo) GetByProvider(ctx context.Context, provider, accountID string) (*domain.User, error) {
	return findOne[domain.User](ctx, r.col, bson.M{
		"providers": bson.M{"$elemMatch": bson.M{"provider": provider, "account_id": accountID}},
	})
}

func (r *userRepo) AddProvider(ctx context.Context, userID string, acc domain.ProviderAccount) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$addToSet": bson.M{"providers": acc}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := map[string]*domain.User{}
	if len(ids) == 0 {
		return out, nil
	}
	users, err := findMany[domain.User](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
