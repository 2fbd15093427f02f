package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/metrics"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/fathima-sithara/teamchat/internal/richtext"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrBadCursor = fmt.Errorf("malformed cursor: %w", apperr.ErrBadRequest)

type MessageService struct {
	d *Deps
}

type CreateMessageInput struct {
	WorkspaceID     string
	ChannelID       string
	ConversationID  string
	ParentMessageID string
	Body            string
	Image           string
}

// Page is one slice of a message list, newest first.
type Page struct {
	Page           []*domain.MessageView `json:"page"`
	IsDone         bool                  `json:"is_done"`
	ContinueCursor string                `json:"continue_cursor"`
}

func EncodeCursor(c repository.Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeCursor(s string) (*repository.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrBadCursor
	}
	var c repository.Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil, ErrBadCursor
	}
	return &c, nil
}

func (s *MessageService) Create(ctx context.Context, userID string, in CreateMessageInput) (*domain.Message, error) {
	member, err := s.d.requireMember(ctx, in.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if richtext.IsEmpty(in.Body) && in.Image == "" {
		return nil, fmt.Errorf("message body is empty: %w", apperr.ErrValidation)
	}
	if err := s.d.allow(ctx, "messages:"+member.ID, s.d.Rates.MessagesPerMinute); err != nil {
		return nil, err
	}

	m := &domain.Message{
		ID:          uuid.NewString(),
		Body:        in.Body,
		Image:       in.Image,
		MemberID:    member.ID,
		WorkspaceID: in.WorkspaceID,
		CreatedAt:   s.d.now(),
	}

	switch {
	case in.ParentMessageID != "":
		// replies live in their parent's channel or conversation
		parent, err := s.d.Store.Messages.GetByID(ctx, in.ParentMessageID)
		if err != nil {
			return nil, notFound("parent message", err)
		}
		if parent.WorkspaceID != in.WorkspaceID {
			return nil, fmt.Errorf("parent message: %w", apperr.ErrNotFound)
		}
		if parent.ParentMessageID != "" {
			return nil, fmt.Errorf("replies cannot be threaded: %w", apperr.ErrBadRequest)
		}
		if err := s.d.requireParticipant(ctx, member, parent.ConversationID); err != nil {
			return nil, err
		}
		m.ParentMessageID = parent.ID
		m.ChannelID = parent.ChannelID
		m.ConversationID = parent.ConversationID
	case in.ConversationID != "":
		c, err := s.d.Store.Conversations.GetByID(ctx, in.ConversationID)
		if err != nil {
			return nil, notFound("conversation", err)
		}
		if c.WorkspaceID != in.WorkspaceID || !c.Includes(member.ID) {
			return nil, apperr.ErrForbidden
		}
		m.ConversationID = c.ID
	case in.ChannelID != "":
		c, err := s.d.Store.Channels.GetByID(ctx, in.ChannelID)
		if err != nil {
			return nil, notFound("channel", err)
		}
		if c.WorkspaceID != in.WorkspaceID {
			return nil, fmt.Errorf("channel: %w", apperr.ErrNotFound)
		}
		m.ChannelID = c.ID
	default:
		return nil, fmt.Errorf("channel, conversation or parent message required: %w", apperr.ErrBadRequest)
	}

	if err := s.d.Store.Messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics.MessagesCreated.Inc()
	s.d.publish(ctx, events.New(events.MessageCreated, m.WorkspaceID, m.ID, userID, m.Topics(), m))
	return m, nil
}

// List returns a page of top-level messages for a channel or conversation,
// or the replies of a parent message. Non-members, and members outside a
// direct conversation, get an exhausted empty page.
func (s *MessageService) List(ctx context.Context, userID string, scope domain.MessageScope, cursor string, limit int) (*Page, error) {
	kind, scopeID, err := scope.Kind()
	if err != nil {
		return nil, err
	}
	before, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	workspaceID, conversationID, err := s.scopeOwner(ctx, kind, scopeID)
	if err != nil {
		return nil, err
	}
	empty := &Page{Page: []*domain.MessageView{}, IsDone: true}
	if workspaceID == "" {
		return empty, nil
	}
	me, err := s.d.memberOf(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return empty, nil
	}
	visible, err := s.d.inConversation(ctx, me, conversationID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return empty, nil
	}

	msgs, err := s.d.Store.Messages.List(ctx, repository.MessageQuery{
		Kind:    kind,
		ScopeID: scopeID,
		Before:  before,
		Limit:   int64(limit + 1),
	})
	if err != nil {
		return nil, err
	}
	out := &Page{IsDone: len(msgs) <= limit}
	if !out.IsDone {
		msgs = msgs[:limit]
	}
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		out.ContinueCursor = EncodeCursor(repository.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	out.Page, err = s.enrich(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scopeOwner resolves the workspace a list scope belongs to and, for direct
// messages and their threads, the conversation. An empty workspace means the
// scope no longer exists.
func (s *MessageService) scopeOwner(ctx context.Context, kind domain.ScopeKind, id string) (ws, conv string, err error) {
	switch kind {
	case domain.ScopeThread:
		var m *domain.Message
		if m, err = s.d.Store.Messages.GetByID(ctx, id); err == nil {
			ws, conv = m.WorkspaceID, m.ConversationID
		}
	case domain.ScopeConversation:
		var c *domain.Conversation
		if c, err = s.d.Store.Conversations.GetByID(ctx, id); err == nil {
			ws, conv = c.WorkspaceID, c.ID
		}
	default:
		var c *domain.Channel
		if c, err = s.d.Store.Channels.GetByID(ctx, id); err == nil {
			ws = c.WorkspaceID
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return "", "", nil
	}
	return ws, conv, err
}

// Get returns one enriched message, or nil when it is gone or hidden.
func (s *MessageService) Get(ctx context.Context, userID, id string) (*domain.MessageView, error) {
	m, err := absent(s.d.Store.Messages.GetByID(ctx, id))
	if err != nil || m == nil {
		return nil, err
	}
	me, err := s.d.memberOf(ctx, m.WorkspaceID, userID)
	if err != nil || me == nil {
		return nil, err
	}
	if ok, err := s.d.inConversation(ctx, me, m.ConversationID); err != nil || !ok {
		return nil, err
	}
	views, err := s.enrich(ctx, []*domain.Message{m})
	if err != nil || len(views) == 0 {
		return nil, err
	}
	return views[0], nil
}

// Update replaces the body. Only the author may edit.
func (s *MessageService) Update(ctx context.Context, userID, id, body string) (*domain.Message, error) {
	m, err := s.authored(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if richtext.IsEmpty(body) && m.Image == "" {
		return nil, fmt.Errorf("message body is empty: %w", apperr.ErrValidation)
	}
	updated, err := s.d.Store.Messages.UpdateBody(ctx, id, body, s.d.now())
	if err != nil {
		return nil, notFound("message", err)
	}
	s.d.publish(ctx, events.New(events.MessageUpdated, updated.WorkspaceID, updated.ID, userID, updated.Topics(), updated))
	return updated, nil
}

// Remove deletes a message and its reactions. Replies stay in place.
func (s *MessageService) Remove(ctx context.Context, userID, id string) error {
	m, err := s.authored(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.d.Store.Reactions.DeleteByMessages(ctx, []string{id}); err != nil {
		return fmt.Errorf("delete message reactions: %w", err)
	}
	if err := s.d.Store.Messages.Delete(ctx, id); err != nil {
		return notFound("message", err)
	}
	s.d.publish(ctx, events.New(events.MessageDeleted, m.WorkspaceID, m.ID, userID, m.Topics(), nil))
	return nil
}

func (s *MessageService) authored(ctx context.Context, userID, id string) (*domain.Message, error) {
	m, err := s.d.Store.Messages.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("message", err)
	}
	me, err := s.d.requireMember(ctx, m.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.d.requireParticipant(ctx, me, m.ConversationID); err != nil {
		return nil, err
	}
	if me.ID != m.MemberID {
		return nil, fmt.Errorf("only the author may change a message: %w", apperr.ErrForbidden)
	}
	return m, nil
}

// enrich attaches authors, reactions, image URLs and thread summaries.
// Messages whose author is gone are dropped.
func (s *MessageService) enrich(ctx context.Context, msgs []*domain.Message) ([]*domain.MessageView, error) {
	if len(msgs) == 0 {
		return []*domain.MessageView{}, nil
	}
	ids := make([]string, 0, len(msgs))
	memberIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		memberIDs = append(memberIDs, m.MemberID)
	}

	threads, err := s.d.Store.Messages.ThreadSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("thread summaries: %w", err)
	}
	for _, t := range threads {
		if t.LastReply != nil {
			memberIDs = append(memberIDs, t.LastReply.MemberID)
		}
	}
	members, err := s.d.Store.Members.GetMany(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := s.d.Store.Users.GetMany(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	reactions, err := s.d.Store.Reactions.ListByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		member := members[m.MemberID]
		if member == nil {
			continue
		}
		user := users[member.UserID]
		if user == nil {
			continue
		}
		v := &domain.MessageView{
			Message:   *m,
			BodyEmpty: richtext.IsEmpty(m.Body),
			Edited:    m.IsEdited(),
			Member:    member,
			User:      user,
			Reactions: domain.AggregateReactions(reactions[m.ID]),
		}
		if m.Image != "" {
			v.ImageURL = s.imageURL(ctx, m.Image)
		}
		if t, ok := threads[m.ID]; ok && t.Count > 0 && t.LastReply != nil {
			v.ThreadCount = t.Count
			ts := t.LastReply.CreatedAt
			v.ThreadTimestamp = &ts
			if rm := members[t.LastReply.MemberID]; rm != nil {
				if ru := users[rm.UserID]; ru != nil {
					v.ThreadImage = ru.Image
				}
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *MessageService) imageURL(ctx context.Context, key string) string {
	if s.d.Images == nil || strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	url, err := s.d.Images.URL(ctx, key)
	if err != nil {
		s.d.Log.Warnw("resolve image url failed", "key", key, "err", err)
		return ""
	}
	return url
}
