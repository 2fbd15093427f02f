package repository

import (
	"context"
	"time"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRepo struct {
	col *mongo.Collection
}

func (r *messageRepo) Create(ctx context.Context, m *domain.Message) error {
	return insertOne(ctx, r.col, m)
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	return findOne[domain.Message](ctx, r.col, bson.M{"_id": id})
}

func scopeFilter(q MessageQuery) bson.M {
	switch q.Kind {
	case domain.ScopeThread:
		return bson.M{"parent_message_id": q.ScopeID}
	case domain.ScopeConversation:
		return bson.M{"conversation_id": q.ScopeID, "parent_message_id": nil}
	default:
		return bson.M{"channel_id": q.ScopeID, "parent_message_id": nil}
	}
}

func (r *messageRepo) List(ctx context.Context, q MessageQuery) ([]*domain.Message, error) {
	filter := scopeFilter(q)
	if q.Before != nil {
		filter["$or"] = []bson.M{
			{"created_at": bson.M{"$lt": q.Before.CreatedAt}},
			{"created_at": q.Before.CreatedAt, "_id": bson.M{"$lt": q.Before.ID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(q.Limit)
	return findMany[domain.Message](ctx, r.col, filter, opts)
}

func (r *messageRepo) UpdateBody(ctx context.Context, id, body string, at time.Time) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res := r.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"body": body, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	if err := res.Decode(&m); err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *messageRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.col, id)
}

func (r *messageRepo) ThreadSummaries(ctx context.Context, parentIDs []string) (map[string]ThreadSummary, error) {
	out := map[string]ThreadSummary{}
	if len(parentIDs) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"parent_message_id": bson.M{"$in": parentIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$parent_message_id",
			"count": bson.M{"$sum": 1},
			"last":  bson.M{"$first": "$$ROOT"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ParentID string         `bson:"_id"`
			Count    int            `bson:"count"`
			Last     domain.Message `bson:"last"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		last := row.Last
		out[row.ParentID] = ThreadSummary{Count: row.Count, LastReply: &last}
	}
	return out, cur.Err()
}

func (r *messageRepo) IDsByChannel(ctx context.Context, channelID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	msgs, err := findMany[domain.Message](ctx, r.col, bson.M{"channel_id": channelID}, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (r *messageRepo) DeleteByChannel(ctx context.Context, channelID string) error {
	return deleteMany(ctx, r.col, bson.M{"channel_id": channelID})
}

func (r *messageRepo) DeleteByWorkspace(ctx context.Context, workspaceID string) error {
	return deleteMany(ctx, r.col, bson.M{"workspace_id": workspaceID})
}
