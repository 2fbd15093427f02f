// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/repository"
)

type mem struct {
	mu            sync.RWMutex
	users         map[string]*domain.User
	workspaces    map[string]*domain.Workspace
	members       map[string]*domain.Member
	channels      map[string]*domain.Channel
	conversations map[string]*domain.Conversation
	messages      map[string]*domain.Message
	reactions     map[string]*domain.Reaction
}

// NewStore returns a Store whose repositories share one in-memory dataset.
func NewStore() *repository.Store {
	m := &mem{
		users:         map[string]*domain.User{},
		workspaces:    map[string]*domain.Workspace{},
		members:       map[string]*domain.Member{},
		channels:      map[string]*domain.Channel{},
		conversations: map[string]*domain.Conversation{},
		messages:      map[string]*domain.Message{},
		reactions:     map[string]*domain.Reaction{},
	}
	return &repository.Store{
		Users:         users{m},
		Workspaces:    workspaces{m},
		Members:       members{m},
		Channels:      channels{m},
		Conversations: conversations{m},
		Messages:      messages{m},
		Reactions:     reactions{m},
	}
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

type users struct{ *mem }

func (r users) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	if _, ok := r.users[u.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range r.users {
		if u.Email != "" && existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	r.users[u.ID] = clone(u)
	return nil
}

func (r users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		return clone(u), nil
	}
	return nil, repository.ErrNotFound
}

func (r users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) GetByProvider(_ context.Context, provider, accountID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		for _, p := range u.Providers {
			if p.Provider == provider && p.AccountID == accountID {
				return clone(u), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) AddProvider(_ context.Context, userID string, acc domain.ProviderAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, p := range u.Providers {
		if p == acc {
			return nil
		}
	}
	u.Providers = append(u.Providers, acc)
	return nil
}

func (r users) GetMany(_ context.Context, ids []string) (map[string]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]*domain.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = clone(u)
		}
	}
	return out, nil
}

type workspaces struct{ *mem }

func (r workspaces) Create(_ context.Context, w *domain.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[w.ID]; ok {
		return repository.ErrDuplicate
	}
	r.workspaces[w.ID] = clone(w)
	return nil
}

func (r workspaces) GetByID(_ context.Context, id string) (*domain.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workspaces[id]; ok {
		return clone(w), nil
	}
	return nil, repository.ErrNotFound
}

func (r workspaces) GetMany(_ context.Context, ids []string) ([]*domain.Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Workspace{}
	for _, id := range ids {
		if w, ok := r.workspaces[id]; ok {
			out = append(out, clone(w))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r workspaces) UpdateName(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.Name = name
	return nil
}

func (r workspaces) UpdateJoinCode(_ context.Context, id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workspaces[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.JoinCode = code
	return nil
}

func (r workspaces) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.workspaces, id)
	return nil
}

type members struct{ *mem }

func (r members) Create(_ context.Context, m *domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.members {
		if existing.WorkspaceID == m.WorkspaceID && existing.UserID == m.UserID {
			return repository.ErrDuplicate
		}
	}
	r.members[m.ID] = clone(m)
	return nil
}

func (r members) GetByID(_ context.Context, id string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.members[id]; ok {
		return clone(m), nil
	}
	return nil, repository.ErrNotFound
}

func (r members) GetByWorkspaceAndUser(_ context.Context, workspaceID, userID string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			return clone(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r members) list(match func(*domain.Member) bool) []*domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Member{}
	for _, m := range r.members {
		if match(m) {
			out = append(out, clone(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r members) ListByWorkspace(_ context.Context, workspaceID string) ([]*domain.Member, error) {
	return r.list(func(m *domain.Member) bool { return m.WorkspaceID == workspaceID }), nil
}

func (r members) ListByUser(_ context.Context, userID string) ([]*domain.Member, error) {
	return r.list(func(m *domain.Member) bool { return m.UserID == userID }), nil
}

func (r members) GetMany(_ context.Context, ids []string) (map[string]*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]*domain.Member{}
	for _, id := range ids {
		if m, ok := r.members[id]; ok {
			out[id] = clone(m)
		}
	}
	return out, nil
}

func (r members) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.members {
		if m.WorkspaceID == workspaceID {
			delete(r.members, id)
		}
	}
	return nil
}

type channels struct{ *mem }

func (r channels) Create(_ context.Context, c *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.ID] = clone(c)
	return nil
}

func (r channels) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.channels[id]; ok {
		return clone(c), nil
	}
	return nil, repository.ErrNotFound
}

func (r channels) ListByWorkspace(_ context.Context, workspaceID string) ([]*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Channel{}
	for _, c := range r.channels {
		if c.WorkspaceID == workspaceID {
			out = append(out, clone(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r channels) UpdateName(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.channels[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Name = name
	return nil
}

func (r channels) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.channels, id)
	return nil
}

func (r channels) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.channels {
		if c.WorkspaceID == workspaceID {
			delete(r.channels, id)
		}
	}
	return nil
}

type conversations struct{ *mem }

func (r conversations) Create(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conversations {
		if existing.WorkspaceID == c.WorkspaceID && existing.MemberOneID == c.MemberOneID && existing.MemberTwoID == c.MemberTwoID {
			return repository.ErrDuplicate
		}
	}
	r.conversations[c.ID] = clone(c)
	return nil
}

func (r conversations) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conversations[id]; ok {
		return clone(c), nil
	}
	return nil, repository.ErrNotFound
}

func (r conversations) FindBetween(_ context.Context, workspaceID, a, b string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conversations {
		if c.WorkspaceID != workspaceID {
			continue
		}
		if (c.MemberOneID == a && c.MemberTwoID == b) || (c.MemberOneID == b && c.MemberTwoID == a) {
			return clone(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r conversations) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conversations {
		if c.WorkspaceID == workspaceID {
			delete(r.conversations, id)
		}
	}
	return nil
}

type messages struct{ *mem }

func (r messages) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; ok {
		return repository.ErrDuplicate
	}
	r.messages[m.ID] = clone(m)
	return nil
}

func (r messages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.messages[id]; ok {
		return clone(m), nil
	}
	return nil, repository.ErrNotFound
}

func newerFirst(a, b *domain.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func inScope(m *domain.Message, q repository.MessageQuery) bool {
	switch q.Kind {
	case domain.ScopeThread:
		return m.ParentMessageID == q.ScopeID
	case domain.ScopeConversation:
		return m.ConversationID == q.ScopeID && m.ParentMessageID == ""
	default:
		return m.ChannelID == q.ScopeID && m.ParentMessageID == ""
	}
}

func (r messages) List(_ context.Context, q repository.MessageQuery) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*domain.Message{}
	for _, m := range r.messages {
		if !inScope(m, q) {
			continue
		}
		if q.Before != nil && !newerFirst(&domain.Message{ID: q.Before.ID, CreatedAt: q.Before.CreatedAt}, m) {
			continue
		}
		out = append(out, clone(m))
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r messages) UpdateBody(_ context.Context, id, body string, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.Body = body
	t := at
	m.UpdatedAt = &t
	return clone(m), nil
}

func (r messages) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

func (r messages) ThreadSummaries(_ context.Context, parentIDs []string) (map[string]repository.ThreadSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := map[string]bool{}
	for _, id := range parentIDs {
		want[id] = true
	}
	out := map[string]repository.ThreadSummary{}
	for _, m := range r.messages {
		if m.ParentMessageID == "" || !want[m.ParentMessageID] {
			continue
		}
		s := out[m.ParentMessageID]
		s.Count++
		if s.LastReply == nil || newerFirst(m, s.LastReply) {
			s.LastReply = clone(m)
		}
		out[m.ParentMessageID] = s
	}
	return out, nil
}

func (r messages) IDsByChannel(_ context.Context, channelID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := []string{}
	for id, m := range r.messages {
		if m.ChannelID == channelID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r messages) DeleteByChannel(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.messages {
		if m.ChannelID == channelID {
			delete(r.messages, id)
		}
	}
	return nil
}

func (r messages) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.messages {
		if m.WorkspaceID == workspaceID {
			delete(r.messages, id)
		}
	}
	return nil
}

type reactions struct{ *mem }

func (r reactions) Create(_ context.Context, re *domain.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reactions {
		if existing.MessageID == re.MessageID && existing.MemberID == re.MemberID && existing.Value == re.Value {
			return repository.ErrDuplicate
		}
	}
	r.reactions[re.ID] = clone(re)
	return nil
}

func (r reactions) Find(_ context.Context, messageID, memberID, value string) (*domain.Reaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, re := range r.reactions {
		if re.MessageID == messageID && re.MemberID == memberID && re.Value == value {
			return clone(re), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r reactions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reactions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.reactions, id)
	return nil
}

func (r reactions) ListByMessages(_ context.Context, messageIDs []string) (map[string][]*domain.Reaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := map[string]bool{}
	for _, id := range messageIDs {
		want[id] = true
	}
	rows := []*domain.Reaction{}
	for _, re := range r.reactions {
		if want[re.MessageID] {
			rows = append(rows, clone(re))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	out := map[string][]*domain.Reaction{}
	for _, re := range rows {
		out[re.MessageID] = append(out[re.MessageID], re)
	}
	return out, nil
}

func (r reactions) DeleteByMessages(_ context.Context, messageIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, id := range messageIDs {
		want[id] = true
	}
	for id, re := range r.reactions {
		if want[re.MessageID] {
			delete(r.reactions, id)
		}
	}
	return nil
}

func (r reactions) DeleteByWorkspace(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, re := range r.reactions {
		if re.WorkspaceID == workspaceID {
			delete(r.reactions, id)
		}
	}
	return nil
}
