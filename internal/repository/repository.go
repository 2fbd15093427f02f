package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/teamchat/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Cursor marks the last message of a page. The next page holds messages
// strictly older than it under (created_at desc, id desc) ordering.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

type MessageQuery struct {
	Kind    domain.ScopeKind
	ScopeID string
	Before  *Cursor
	Limit   int64
}

type ThreadSummary struct {
	Count     int
	LastReply *domain.Message
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByProvider(ctx context.Context, provider, accountID string) (*domain.User, error)
	AddProvider(ctx context.Context, userID string, acc domain.ProviderAccount) error
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type WorkspaceRepository interface {
	Create(ctx context.Context, w *domain.Workspace) error
	GetByID(ctx context.Context, id string) (*domain.Workspace, error)
	GetMany(ctx context.Context, ids []string) ([]*domain.Workspace, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateJoinCode(ctx context.Context, id, code string) error
	Delete(ctx context.Context, id string) error
}

type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	GetByWorkspaceAndUser(ctx context.Context, workspaceID, userID string) (*domain.Member, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Member, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Member, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Member, error)
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

type ChannelRepository interface {
	Create(ctx context.Context, c *domain.Channel) error
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Channel, error)
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	FindBetween(ctx context.Context, workspaceID, memberA, memberB string) (*domain.Conversation, error)
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, q MessageQuery) ([]*domain.Message, error)
	UpdateBody(ctx context.Context, id, body string, at time.Time) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
	ThreadSummaries(ctx context.Context, parentIDs []string) (map[string]ThreadSummary, error)
	// IDsByChannel lists every message of the channel, replies included, so
	// dependent rows can be removed before the messages themselves.
	IDsByChannel(ctx context.Context, channelID string) ([]string, error)
	DeleteByChannel(ctx context.Context, channelID string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

type ReactionRepository interface {
	Create(ctx context.Context, r *domain.Reaction) error
	Find(ctx context.Context, messageID, memberID, value string) (*domain.Reaction, error)
	Delete(ctx context.Context, id string) error
	ListByMessages(ctx context.Context, messageIDs []string) (map[string][]*domain.Reaction, error)
	DeleteByMessages(ctx context.Context, messageIDs []string) error
	DeleteByWorkspace(ctx context.Context, workspaceID string) error
}

// Store bundles every repository the services need.
type Store struct {
	Users         UserRepository
	Workspaces    WorkspaceRepository
	Members       MemberRepository
	Channels      ChannelRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Reactions     ReactionRepository
}
