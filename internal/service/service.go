package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/metrics"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"go.uber.org/zap"
)

// Limiter counts hits against a named bucket for a fixed window.
type Limiter interface {
	Allow(ctx context.Context, bucket string, limit int, window time.Duration) (bool, error)
}

// ImageResolver turns a stored image key into a URL a client can fetch.
type ImageResolver interface {
	URL(ctx context.Context, key string) (string, error)
}

type Presence interface {
	OnlineUsers(ctx context.Context, workspaceID string) ([]string, error)
}

type RateLimits struct {
	MessagesPerMinute     int
	JoinAttemptsPerMinute int
}

// Deps is shared by every service.
type Deps struct {
	Store    *repository.Store
	Events   events.Publisher
	Limiter  Limiter
	Images   ImageResolver
	Presence Presence
	Rates    RateLimits
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC().Truncate(time.Millisecond)
	}
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (d *Deps) publish(ctx context.Context, ev events.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
		d.Log.Warnw("publish event failed", "type", ev.Type, "entity", ev.EntityID, "err", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
}

func (d *Deps) allow(ctx context.Context, bucket string, limit int) error {
	if d.Limiter == nil || limit <= 0 {
		return nil
	}
	ok, err := d.Limiter.Allow(ctx, bucket, limit, time.Minute)
	if err != nil {
		d.Log.Warnw("rate limiter unavailable", "bucket", bucket, "err", err)
		return nil
	}
	if !ok {
		return apperr.ErrRateLimited
	}
	return nil
}

// memberOf returns the caller's member row, or nil when they do not belong
// to the workspace.
func (d *Deps) memberOf(ctx context.Context, workspaceID, userID string) (*domain.Member, error) {
	if workspaceID == "" || userID == "" {
		return nil, nil
	}
	m, err := d.Store.Members.GetByWorkspaceAndUser(ctx, workspaceID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup member: %w", err)
	}
	return m, nil
}

func (d *Deps) requireMember(ctx context.Context, workspaceID, userID string) (*domain.Member, error) {
	m, err := d.memberOf(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.ErrForbidden
	}
	return m, nil
}

// inConversation reports whether me takes part in the direct conversation.
// An empty id is a channel message, open to every member.
func (d *Deps) inConversation(ctx context.Context, me *domain.Member, conversationID string) (bool, error) {
	if conversationID == "" {
		return true, nil
	}
	c, err := d.Store.Conversations.GetByID(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup conversation: %w", err)
	}
	return c.WorkspaceID == me.WorkspaceID && c.Includes(me.ID), nil
}

// requireParticipant is inConversation for writes.
func (d *Deps) requireParticipant(ctx context.Context, me *domain.Member, conversationID string) error {
	ok, err := d.inConversation(ctx, me, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not part of this conversation: %w", apperr.ErrForbidden)
	}
	return nil
}

func (d *Deps) requireAdmin(ctx context.Context, workspaceID, userID string) (*domain.Member, error) {
	m, err := d.requireMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, fmt.Errorf("admin role required: %w", apperr.ErrForbidden)
	}
	return m, nil
}

// absent converts a repository miss into the (nil, nil) result queries use
// for "resolved but not there".
func absent[T any](v *T, err error) (*T, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// notFound maps a repository miss onto the API error for mutations.
func notFound(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return err
}

// Services bundles every domain service behind one constructor.
type Services struct {
	Users         *UserService
	Workspaces    *WorkspaceService
	Members       *MemberService
	Channels      *ChannelService
	Conversations *ConversationService
	Messages      *MessageService
	Reactions     *ReactionService
}

func New(d *Deps) *Services {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	return &Services{
		Users:         &UserService{d: d},
		Workspaces:    &WorkspaceService{d: d},
		Members:       &MemberService{d: d},
		Channels:      &ChannelService{d: d},
		Conversations: &ConversationService{d: d},
		Messages:      &MessageService{d: d},
		Reactions:     &ReactionService{d: d},
	}
}
