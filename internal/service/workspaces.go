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

const defaultChannel = "general"

type WorkspaceService struct {
	d *Deps
}

// Create makes the workspace, its creator's admin membership and the
// default channel.
func (s *WorkspaceService) Create(ctx context.Context, userID, rawName string) (*domain.Workspace, error) {
	name, err := domain.WorkspaceName(rawName)
	if err != nil {
		return nil, err
	}
	code, err := domain.GenerateJoinCode()
	if err != nil {
		return nil, err
	}
	now := s.d.now()
	w := &domain.Workspace{ID: uuid.NewString(), Name: name, UserID: userID, JoinCode: code, CreatedAt: now}
	if err := s.d.Store.Workspaces.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	m := &domain.Member{ID: uuid.NewString(), WorkspaceID: w.ID, UserID: userID, Role: domain.RoleAdmin, CreatedAt: now}
	if err := s.d.Store.Members.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create admin member: %w", err)
	}
	ch := &domain.Channel{ID: uuid.NewString(), WorkspaceID: w.ID, Name: defaultChannel, CreatedAt: now}
	if err := s.d.Store.Channels.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("create default channel: %w", err)
	}

	s.d.Log.Infow("workspace created", "workspace", w.ID, "user", userID)
	s.d.publish(ctx, events.New(events.WorkspaceCreated, w.ID, w.ID, userID,
		[]string{domain.UserTopic(userID)}, w))
	return w, nil
}

// List returns the workspaces userID is a member of, oldest first.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	members, err := s.d.Store.Members.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.WorkspaceID)
	}
	return s.d.Store.Workspaces.GetMany(ctx, ids)
}

// Get returns nil when the workspace is missing or the caller is not a member.
func (s *WorkspaceService) Get(ctx context.Context, userID, id string) (*domain.Workspace, error) {
	m, err := s.d.memberOf(ctx, id, userID)
	if err != nil || m == nil {
		return nil, err
	}
	return absent(s.d.Store.Workspaces.GetByID(ctx, id))
}

// Info is readable by any signed-in user so the join page can show the
// workspace name before the caller belongs to it.
func (s *WorkspaceService) Info(ctx context.Context, userID, id string) (*domain.WorkspaceInfo, error) {
	w, err := absent(s.d.Store.Workspaces.GetByID(ctx, id))
	if err != nil || w == nil {
		return nil, err
	}
	m, err := s.d.memberOf(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &domain.WorkspaceInfo{Name: w.Name, IsMember: m != nil}, nil
}

func (s *WorkspaceService) Rename(ctx context.Context, userID, id, rawName string) (*domain.Workspace, error) {
	if _, err := s.d.requireAdmin(ctx, id, userID); err != nil {
		return nil, err
	}
	name, err := domain.WorkspaceName(rawName)
	if err != nil {
		return nil, err
	}
	if err := s.d.Store.Workspaces.UpdateName(ctx, id, name); err != nil {
		return nil, notFound("workspace", err)
	}
	w, err := s.d.Store.Workspaces.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("workspace", err)
	}
	s.d.publish(ctx, events.New(events.WorkspaceUpdated, id, id, userID, []string{domain.WorkspaceTopic(id)}, w))
	return w, nil
}

// Remove deletes the workspace and everything that hangs off it.
func (s *WorkspaceService) Remove(ctx context.Context, userID, id string) error {
	if _, err := s.d.requireAdmin(ctx, id, userID); err != nil {
		return err
	}
	members, err := s.d.Store.Members.ListByWorkspace(ctx, id)
	if err != nil {
		return err
	}
	st := s.d.Store
	steps := []struct {
		what string
		fn   func(context.Context, string) error
	}{
		{"reactions", st.Reactions.DeleteByWorkspace},
		{"messages", st.Messages.DeleteByWorkspace},
		{"conversations", st.Conversations.DeleteByWorkspace},
		{"channels", st.Channels.DeleteByWorkspace},
		{"members", st.Members.DeleteByWorkspace},
	}
	for _, step := range steps {
		if err := step.fn(ctx, id); err != nil {
			return fmt.Errorf("delete workspace %s: %w", step.what, err)
		}
	}
	if err := st.Workspaces.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	topics := []string{domain.WorkspaceTopic(id)}
	for _, m := range members {
		topics = append(topics, domain.UserTopic(m.UserID))
	}
	s.d.Log.Infow("workspace removed", "workspace", id, "user", userID)
	s.d.publish(ctx, events.New(events.WorkspaceDeleted, id, id, userID, topics, nil))
	return nil
}

// NewJoinCode rotates the join code. Outstanding invites stop working.
func (s *WorkspaceService) NewJoinCode(ctx context.Context, userID, id string) (*domain.Workspace, error) {
	if _, err := s.d.requireAdmin(ctx, id, userID); err != nil {
		return nil, err
	}
	code, err := domain.GenerateJoinCode()
	if err != nil {
		return nil, err
	}
	if err := s.d.Store.Workspaces.UpdateJoinCode(ctx, id, code); err != nil {
		return nil, notFound("workspace", err)
	}
	w, err := s.d.Store.Workspaces.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("workspace", err)
	}
	s.d.publish(ctx, events.New(events.JoinCodeRotated, id, id, userID, []string{domain.WorkspaceTopic(id)}, nil))
	return w, nil
}

// Join adds userID as a plain member when code matches the current join code.
func (s *WorkspaceService) Join(ctx context.Context, userID, id, code string) (*domain.Workspace, error) {
	if err := s.d.allow(ctx, "join:"+userID, s.d.Rates.JoinAttemptsPerMinute); err != nil {
		return nil, err
	}
	w, err := s.d.Store.Workspaces.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("workspace", err)
	}
	if !domain.MatchJoinCode(w.JoinCode, code) {
		return nil, apperr.ErrInvalidJoinCode
	}
	existing, err := s.d.memberOf(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrAlreadyMember
	}
	m := &domain.Member{ID: uuid.NewString(), WorkspaceID: id, UserID: userID, Role: domain.RoleMember, CreatedAt: s.d.now()}
	if err := s.d.Store.Members.Create(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrAlreadyMember
		}
		return nil, err
	}
	s.d.Log.Infow("workspace joined", "workspace", id, "user", userID)
	s.d.publish(ctx, events.New(events.MemberJoined, id, m.ID, userID,
		[]string{domain.WorkspaceTopic(id), domain.UserTopic(userID)}, m))
	return w, nil
}

// Online lists the member ids with a live connection to the workspace.
// Non-members get nil.
func (s *WorkspaceService) Online(ctx context.Context, userID, id string) ([]string, error) {
	m, err := s.d.memberOf(ctx, id, userID)
	if err != nil || m == nil {
		return nil, err
	}
	if s.d.Presence == nil {
		return []string{}, nil
	}
	userIDs, err := s.d.Presence.OnlineUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	online := map[string]bool{}
	for _, uid := range userIDs {
		online[uid] = true
	}
	members, err := s.d.Store.Members.ListByWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, mm := range members {
		if online[mm.UserID] {
			out = append(out, mm.ID)
		}
	}
	return out, nil
}
