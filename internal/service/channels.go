package service

import (
	"context"
	"fmt"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/google/uuid"
)

type ChannelService struct {
	d *Deps
}

func (s *ChannelService) Create(ctx context.Context, userID, workspaceID, rawName string) (*domain.Channel, error) {
	if _, err := s.d.requireAdmin(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	name, err := domain.ChannelName(rawName)
	if err != nil {
		return nil, err
	}
	c := &domain.Channel{ID: uuid.NewString(), WorkspaceID: workspaceID, Name: name, CreatedAt: s.d.now()}
	if err := s.d.Store.Channels.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	s.d.publish(ctx, events.New(events.ChannelCreated, workspaceID, c.ID, userID,
		[]string{domain.WorkspaceTopic(workspaceID)}, c))
	return c, nil
}

// List returns the workspace's channels, or an empty list for non-members.
func (s *ChannelService) List(ctx context.Context, userID, workspaceID string) ([]*domain.Channel, error) {
	m, err := s.d.memberOf(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return []*domain.Channel{}, nil
	}
	return s.d.Store.Channels.ListByWorkspace(ctx, workspaceID)
}

func (s *ChannelService) Get(ctx context.Context, userID, id string) (*domain.Channel, error) {
	c, err := absent(s.d.Store.Channels.GetByID(ctx, id))
	if err != nil || c == nil {
		return nil, err
	}
	m, err := s.d.memberOf(ctx, c.WorkspaceID, userID)
	if err != nil || m == nil {
		return nil, err
	}
	return c, nil
}

func (s *ChannelService) Rename(ctx context.Context, userID, id, rawName string) (*domain.Channel, error) {
	c, err := s.d.Store.Channels.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("channel", err)
	}
	if _, err := s.d.requireAdmin(ctx, c.WorkspaceID, userID); err != nil {
		return nil, err
	}
	name, err := domain.ChannelName(rawName)
	if err != nil {
		return nil, err
	}
	if err := s.d.Store.Channels.UpdateName(ctx, id, name); err != nil {
		return nil, notFound("channel", err)
	}
	c.Name = name
	s.d.publish(ctx, events.New(events.ChannelUpdated, c.WorkspaceID, c.ID, userID,
		[]string{domain.WorkspaceTopic(c.WorkspaceID), domain.ChannelTopic(c.ID)}, c))
	return c, nil
}

// Remove deletes the channel with its messages and their reactions.
func (s *ChannelService) Remove(ctx context.Context, userID, id string) error {
	c, err := s.d.Store.Channels.GetByID(ctx, id)
	if err != nil {
		return notFound("channel", err)
	}
	if _, err := s.d.requireAdmin(ctx, c.WorkspaceID, userID); err != nil {
		return err
	}
	ids, err := s.d.Store.Messages.IDsByChannel(ctx, id)
	if err != nil {
		return fmt.Errorf("list channel messages: %w", err)
	}
	if err := s.d.Store.Reactions.DeleteByMessages(ctx, ids); err != nil {
		return fmt.Errorf("delete channel reactions: %w", err)
	}
	if err := s.d.Store.Messages.DeleteByChannel(ctx, id); err != nil {
		return fmt.Errorf("delete channel messages: %w", err)
	}
	if err := s.d.Store.Channels.Delete(ctx, id); err != nil {
		return notFound("channel", err)
	}
	s.d.Log.Infow("channel removed", "channel", id, "workspace", c.WorkspaceID, "messages", len(ids))
	s.d.publish(ctx, events.New(events.ChannelDeleted, c.WorkspaceID, c.ID, userID,
		[]string{domain.WorkspaceTopic(c.WorkspaceID), domain.ChannelTopic(c.ID)}, nil))
	return nil
}
