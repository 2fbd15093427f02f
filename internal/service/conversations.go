package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/google/uuid"
)

type ConversationService struct {
	d *Deps
}

// CreateOrGet returns the direct conversation between the caller and
// memberID, creating it on first use.
func (s *ConversationService) CreateOrGet(ctx context.Context, userID, workspaceID, memberID string) (*domain.Conversation, error) {
	me, err := s.d.requireMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	other, err := s.d.Store.Members.GetByID(ctx, memberID)
	if err != nil {
		return nil, notFound("member", err)
	}
	if other.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("member: %w", apperr.ErrNotFound)
	}

	existing, err := s.d.Store.Conversations.FindBetween(ctx, workspaceID, me.ID, other.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	c := domain.NewConversation(uuid.NewString(), workspaceID, me.ID, other.ID, s.d.now())
	if err := s.d.Store.Conversations.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost the race to the other participant
			return s.d.Store.Conversations.FindBetween(ctx, workspaceID, me.ID, other.ID)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.d.publish(ctx, events.New(events.ConversationCreated, workspaceID, c.ID, userID,
		[]string{domain.WorkspaceTopic(workspaceID)}, c))
	return c, nil
}

type UserService struct {
	d *Deps
}

// Current returns the signed-in user, or nil when the account is gone.
func (s *UserService) Current(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, nil
	}
	return absent(s.d.Store.Users.GetByID(ctx, userID))
}
