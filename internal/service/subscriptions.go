package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/repository"
)

// CanSubscribe reports whether userID may receive invalidations for topic.
func (s *Services) CanSubscribe(ctx context.Context, userID, topic string) (bool, error) {
	kind, id, ok := strings.Cut(topic, ":")
	if !ok || id == "" || userID == "" {
		return false, nil
	}
	d := s.Workspaces.d

	var workspaceID, conversationID string
	switch kind {
	case "user":
		return id == userID, nil
	case "workspace":
		workspaceID = id
	case string(domain.ScopeChannel):
		c, err := d.Store.Channels.GetByID(ctx, id)
		if err != nil {
			return false, ignoreMissing(err)
		}
		workspaceID = c.WorkspaceID
	case string(domain.ScopeThread):
		m, err := d.Store.Messages.GetByID(ctx, id)
		if err != nil {
			return false, ignoreMissing(err)
		}
		workspaceID, conversationID = m.WorkspaceID, m.ConversationID
	case string(domain.ScopeConversation):
		c, err := d.Store.Conversations.GetByID(ctx, id)
		if err != nil {
			return false, ignoreMissing(err)
		}
		workspaceID, conversationID = c.WorkspaceID, c.ID
	default:
		return false, nil
	}

	me, err := d.memberOf(ctx, workspaceID, userID)
	if err != nil || me == nil {
		return false, err
	}
	return d.inConversation(ctx, me, conversationID)
}

func ignoreMissing(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
