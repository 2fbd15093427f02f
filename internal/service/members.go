package service

import (
	"context"

	"github.com/fathima-sithara/teamchat/internal/domain"
)

type MemberService struct {
	d *Deps
}

// Current returns the caller's membership, or nil.
func (s *MemberService) Current(ctx context.Context, userID, workspaceID string) (*domain.Member, error) {
	return s.d.memberOf(ctx, workspaceID, userID)
}

// List returns every member with its user. Non-members see an empty list.
func (s *MemberService) List(ctx context.Context, userID, workspaceID string) ([]*domain.MemberWithUser, error) {
	me, err := s.d.memberOf(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if me == nil {
		return []*domain.MemberWithUser{}, nil
	}
	members, err := s.d.Store.Members.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.d.Store.Users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.MemberWithUser, 0, len(members))
	for _, m := range members {
		u, ok := users[m.UserID]
		if !ok {
			continue
		}
		out = append(out, &domain.MemberWithUser{Member: *m, User: u})
	}
	return out, nil
}

// Get returns a member visible to the caller, or nil.
func (s *MemberService) Get(ctx context.Context, userID, memberID string) (*domain.MemberWithUser, error) {
	m, err := absent(s.d.Store.Members.GetByID(ctx, memberID))
	if err != nil || m == nil {
		return nil, err
	}
	me, err := s.d.memberOf(ctx, m.WorkspaceID, userID)
	if err != nil || me == nil {
		return nil, err
	}
	u, err := absent(s.d.Store.Users.GetByID(ctx, m.UserID))
	if err != nil || u == nil {
		return nil, err
	}
	return &domain.MemberWithUser{Member: *m, User: u}, nil
}
