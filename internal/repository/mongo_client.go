package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colUsers         = "users"
	colWorkspaces    = "workspaces"
	colMembers       = "members"
	colChannels      = "channels"
	colConversations = "conversations"
	colMessages      = "messages"
	colReactions     = "reactions"

	opTimeout   = 3 * time.Second
	listTimeout = 5 * time.Second
)

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// NewMongoStore wires every collection backed repository against db.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:         &userRepo{col: db.Collection(colUsers)},
		Workspaces:    &workspaceRepo{col: db.Collection(colWorkspaces)},
		Members:       &memberRepo{col: db.Collection(colMembers)},
		Channels:      &channelRepo{col: db.Collection(colChannels)},
		Conversations: &conversationRepo{col: db.Collection(colConversations)},
		Messages:      &messageRepo{col: db.Collection(colMessages)},
		Reactions:     &reactionRepo{col: db.Collection(colReactions)},
	}
}

// EnsureIndexes creates the indexes the queries rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$exists": true}})},
			{Keys: bson.D{{Key: "providers.provider", Value: 1}, {Key: "providers.account_id", Value: 1}}},
		},
		colMembers: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colChannels: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colConversations: {
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "member_one_id", Value: 1}, {Key: "member_two_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colMessages: {
			{Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "parent_message_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "parent_message_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "parent_message_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "workspace_id", Value: 1}}},
		},
		colReactions: {
			{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "member_id", Value: 1}, {Key: "value", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "workspace_id", Value: 1}}},
		},
	}
	for col, models := range specs {
		ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := db.Collection(col).Indexes().CreateMany(ictx, models)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]*T, error) {
	defer cur.Close(ctx)
	out := []*T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter any) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var v T
	if err := col.FindOne(ctx, filter).Decode(&v); err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]*T, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](ctx, cur)
}

func insertOne(ctx context.Context, col *mongo.Collection, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := col.InsertOne(ctx, doc)
	return mapErr(err)
}

func updateByID(ctx context.Context, col *mongo.Collection, id string, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, col *mongo.Collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteMany(ctx context.Context, col *mongo.Collection, filter any) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	_, err := col.DeleteMany(ctx, filter)
	return err
}
