package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/google/uuid"
)

const maxReactionRunes = 16

type ReactionService struct {
	d *Deps
}

// Toggle adds the caller's reaction with value to the message, or removes it
// when already present. It reports whether the reaction now exists.
func (s *ReactionService) Toggle(ctx context.Context, userID, messageID, value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" || utf8.RuneCountInString(value) > maxReactionRunes {
		return false, fmt.Errorf("invalid reaction value: %w", apperr.ErrValidation)
	}
	m, err := s.d.Store.Messages.GetByID(ctx, messageID)
	if err != nil {
		return false, notFound("message", err)
	}
	me, err := s.d.requireMember(ctx, m.WorkspaceID, userID)
	if err != nil {
		return false, err
	}
	if err := s.d.requireParticipant(ctx, me, m.ConversationID); err != nil {
		return false, err
	}

	existing, err := s.d.Store.Reactions.Find(ctx, messageID, me.ID, value)
	switch {
	case err == nil:
		if err := s.d.Store.Reactions.Delete(ctx, existing.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return false, err
		}
		s.d.publish(ctx, events.New(events.ReactionToggled, m.WorkspaceID, m.ID, userID, m.Topics(), existing))
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	r := &domain.Reaction{
		ID:          uuid.NewString(),
		WorkspaceID: m.WorkspaceID,
		MessageID:   m.ID,
		MemberID:    me.ID,
		Value:       value,
		CreatedAt:   s.d.now(),
	}
	if err := s.d.Store.Reactions.Create(ctx, r); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return false, err
	}
	s.d.publish(ctx, events.New(events.ReactionToggled, m.WorkspaceID, m.ID, userID, m.Topics(), r))
	return true, nil
}
