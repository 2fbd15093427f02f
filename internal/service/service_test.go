package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/repository"
	"github.com/fathima-sithara/teamchat/internal/repository/repotest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type denyAfter struct {
	mu    sync.Mutex
	limit int
	hits  map[string]int
}

func (l *denyAfter) Allow(_ context.Context, bucket string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[bucket]++
	return l.hits[bucket] <= l.limit, nil
}

type prefixImages struct{}

func (prefixImages) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

type fixture struct {
	store  *repository.Store
	events *recorder
	deps   *Deps
	svc    *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	f := &fixture{store: repotest.NewStore(), events: &recorder{}}
	f.deps = &Deps{
		Store:  f.store,
		Events: f.events,
		Images: prefixImages{},
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	}
	f.svc = New(f.deps)
	return f
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.NewString(), Name: name, Email: name + "@example.com", Image: "https://img.test/" + name}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) join(t *testing.T, w *domain.Workspace, u *domain.User) *domain.Member {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Workspaces.Join(ctx, u.ID, w.ID, w.JoinCode)
	require.NoError(t, err)
	m, err := f.svc.Members.Current(ctx, u.ID, w.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func (f *fixture) general(t *testing.T, userID, workspaceID string) *domain.Channel {
	t.Helper()
	chans, err := f.svc.Channels.List(context.Background(), userID, workspaceID)
	require.NoError(t, err)
	require.Len(t, chans, 1)
	return chans[0]
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "  Acme  ")
	require.NoError(t, err)
	assert.Equal(t, "Acme", w.Name)
	assert.Len(t, w.JoinCode, domain.JoinCodeLength)

	m, err := f.svc.Members.Current(ctx, alice.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, m.Role)

	ch := f.general(t, alice.ID, w.ID)
	assert.Equal(t, "general", ch.Name)

	list, err := f.svc.Workspaces.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].ID)
	assert.Contains(t, f.events.types(), events.WorkspaceCreated)

	_, err = f.svc.Workspaces.Create(ctx, alice.ID, "ab")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestWorkspaceVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)

	got, err := f.svc.Workspaces.Get(ctx, bob.ID, w.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	info, err := f.svc.Workspaces.Info(ctx, bob.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, &domain.WorkspaceInfo{Name: "Acme", IsMember: false}, info)

	info, err = f.svc.Workspaces.Info(ctx, bob.ID, "missing")
	require.NoError(t, err)
	assert.Nil(t, info)

	chans, err := f.svc.Channels.List(ctx, bob.ID, w.ID)
	require.NoError(t, err)
	assert.Empty(t, chans)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)

	_, err = f.svc.Workspaces.Join(ctx, bob.ID, w.ID, "zzzzzz")
	assert.True(t, errors.Is(err, apperr.ErrInvalidJoinCode))

	_, err = f.svc.Workspaces.Join(ctx, bob.ID, "missing", w.JoinCode)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	joined, err := f.svc.Workspaces.Join(ctx, bob.ID, w.ID, " "+w.JoinCode+" ")
	require.NoError(t, err)
	assert.Equal(t, w.ID, joined.ID)

	m, err := f.svc.Members.Current(ctx, bob.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, m.Role)

	_, err = f.svc.Workspaces.Join(ctx, bob.ID, w.ID, w.JoinCode)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyMember))

	info, err := f.svc.Workspaces.Info(ctx, bob.ID, w.ID)
	require.NoError(t, err)
	assert.True(t, info.IsMember)
}

func TestJoinRateLimited(t *testing.T) {
	f := newFixture(t)
	f.deps.Limiter = &denyAfter{limit: 2}
	f.deps.Rates.JoinAttemptsPerMinute = 2
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.Workspaces.Join(ctx, bob.ID, w.ID, "wrong0")
		assert.True(t, errors.Is(err, apperr.ErrInvalidJoinCode))
	}
	_, err = f.svc.Workspaces.Join(ctx, bob.ID, w.ID, w.JoinCode)
	assert.True(t, errors.Is(err, apperr.ErrRateLimited))
}

func TestRotateJoinCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	f.join(t, w, bob)

	_, err = f.svc.Workspaces.NewJoinCode(ctx, bob.ID, w.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	rotated, err := f.svc.Workspaces.NewJoinCode(ctx, alice.ID, w.ID)
	require.NoError(t, err)
	assert.Len(t, rotated.JoinCode, domain.JoinCodeLength)

	if rotated.JoinCode != w.JoinCode {
		_, err = f.svc.Workspaces.Join(ctx, carol.ID, w.ID, w.JoinCode)
		assert.True(t, errors.Is(err, apperr.ErrInvalidJoinCode))
	}
	_, err = f.svc.Workspaces.Join(ctx, carol.ID, w.ID, rotated.JoinCode)
	assert.NoError(t, err)
}

func TestAdminOnlyMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	f.join(t, w, bob)
	ch := f.general(t, alice.ID, w.ID)

	_, err = f.svc.Workspaces.Rename(ctx, bob.ID, w.ID, "Hijacked")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = f.svc.Channels.Create(ctx, bob.ID, w.ID, "random")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = f.svc.Channels.Rename(ctx, bob.ID, ch.ID, "lobby")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.True(t, errors.Is(f.svc.Channels.Remove(ctx, bob.ID, ch.ID), apperr.ErrForbidden))
	assert.True(t, errors.Is(f.svc.Workspaces.Remove(ctx, bob.ID, w.ID), apperr.ErrForbidden))

	renamed, err := f.svc.Workspaces.Rename(ctx, alice.ID, w.ID, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", renamed.Name)
}

func TestChannelLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)

	ch, err := f.svc.Channels.Create(ctx, alice.ID, w.ID, "Team  Updates")
	require.NoError(t, err)
	assert.Equal(t, "team-updates", ch.Name)

	_, err = f.svc.Channels.Create(ctx, alice.ID, w.ID, "ab")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	renamed, err := f.svc.Channels.Rename(ctx, alice.ID, ch.ID, "Release Notes")
	require.NoError(t, err)
	assert.Equal(t, "release-notes", renamed.Name)

	msg, err := f.svc.Messages.Create(ctx, alice.ID, CreateMessageInput{WorkspaceID: w.ID, ChannelID: ch.ID, Body: "hi"})
	require.NoError(t, err)
	_, err = f.svc.Reactions.Toggle(ctx, alice.ID, msg.ID, "👍")
	require.NoError(t, err)

	require.NoError(t, f.svc.Channels.Remove(ctx, alice.ID, ch.ID))

	got, err := f.svc.Channels.Get(ctx, alice.ID, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = f.store.Messages.GetByID(ctx, msg.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	rs, err := f.store.Reactions.ListByMessages(ctx, []string{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, rs)

	assert.True(t, errors.Is(f.svc.Channels.Remove(ctx, alice.ID, ch.ID), apperr.ErrNotFound))
}

// brokenReactions fails the bulk delete a channel removal runs first.
type brokenReactions struct{ repository.ReactionRepository }

func (brokenReactions) DeleteByMessages(context.Context, []string) error {
	return errors.New("reactions unavailable")
}

func TestRemoveChannelKeepsMessagesWhenReactionCleanupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	ch, err := f.svc.Channels.Create(ctx, alice.ID, w.ID, "launch")
	require.NoError(t, err)
	msg, err := f.svc.Messages.Create(ctx, alice.ID, CreateMessageInput{WorkspaceID: w.ID, ChannelID: ch.ID, Body: "go"})
	require.NoError(t, err)
	_, err = f.svc.Reactions.Toggle(ctx, alice.ID, msg.ID, "🚀")
	require.NoError(t, err)

	orig := f.store.Reactions
	f.store.Reactions = brokenReactions{orig}
	assert.Error(t, f.svc.Channels.Remove(ctx, alice.ID, ch.ID))
	f.store.Reactions = orig

	_, err = f.store.Messages.GetByID(ctx, msg.ID)
	require.NoError(t, err, "messages are removed only after their reactions")
	_, err = f.store.Channels.GetByID(ctx, ch.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Channels.Remove(ctx, alice.ID, ch.ID))
	_, err = f.store.Messages.GetByID(ctx, msg.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	rs, err := f.store.Reactions.ListByMessages(ctx, []string{msg.ID})
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestRemoveWorkspaceCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	bobM := f.join(t, w, bob)
	ch := f.general(t, alice.ID, w.ID)
	_, err = f.svc.Messages.Create(ctx, bob.ID, CreateMessageInput{WorkspaceID: w.ID, ChannelID: ch.ID, Body: "hello"})
	require.NoError(t, err)
	_, err = f.svc.Conversations.CreateOrGet(ctx, alice.ID, w.ID, bobM.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Workspaces.Remove(ctx, alice.ID, w.ID))

	list, err := f.svc.Workspaces.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.store.Channels.GetByID(ctx, ch.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, events.WorkspaceDeleted, last.Type)
	assert.Contains(t, last.Topics, domain.UserTopic(bob.ID))
}

func TestConversationCreateOrGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	bobM := f.join(t, w, bob)
	aliceM, err := f.svc.Members.Current(ctx, alice.ID, w.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := alice.ID, bobM.ID
			if i%2 == 1 {
				caller, other = bob.ID, aliceM.ID
			}
			c, err := f.svc.Conversations.CreateOrGet(ctx, caller, w.ID, other)
			if assert.NoError(t, err) {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	c1, err := f.svc.Conversations.CreateOrGet(ctx, alice.ID, w.ID, bobM.ID)
	require.NoError(t, err)
	c2, err := f.svc.Conversations.CreateOrGet(ctx, bob.ID, w.ID, aliceM.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, ids[0], c1.ID)
	assert.Less(t, c1.MemberOneID, c1.MemberTwoID)
	assert.True(t, c1.Includes(aliceM.ID) && c1.Includes(bobM.ID))

	dup := domain.NewConversation(uuid.NewString(), w.ID, bobM.ID, aliceM.ID, time.Now())
	assert.True(t, errors.Is(f.store.Conversations.Create(ctx, dup), repository.ErrDuplicate))

	_, err = f.svc.Conversations.CreateOrGet(ctx, alice.ID, w.ID, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	bobM := f.join(t, w, bob)

	list, err := f.svc.Members.List(ctx, alice.ID, w.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].User.Name)

	outsider, err := f.svc.Members.List(ctx, eve.ID, w.ID)
	require.NoError(t, err)
	assert.Empty(t, outsider)

	got, err := f.svc.Members.Get(ctx, alice.ID, bobM.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.User.Name)

	hidden, err := f.svc.Members.Get(ctx, eve.ID, bobM.ID)
	require.NoError(t, err)
	assert.Nil(t, hidden)
}

func TestUsersCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	u, err := f.svc.Users.Current(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, u.Email)

	u, err = f.svc.Users.Current(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCanSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	w, err := f.svc.Workspaces.Create(ctx, alice.ID, "Acme")
	require.NoError(t, err)
	bobM := f.join(t, w, bob)
	f.join(t, w, eve)
	ch := f.general(t, alice.ID, w.ID)
	conv, err := f.svc.Conversations.CreateOrGet(ctx, alice.ID, w.ID, bobM.ID)
	require.NoError(t, err)
	dm, err := f.svc.Messages.Create(ctx, alice.ID, CreateMessageInput{WorkspaceID: w.ID, ConversationID: conv.ID, Body: "psst"})
	require.NoError(t, err)
	outsider := f.user(t, "mallory")

	cases := []struct {
		user  string
		topic string
		want  bool
	}{
		{alice.ID, domain.WorkspaceTopic(w.ID), true},
		{outsider.ID, domain.WorkspaceTopic(w.ID), false},
		{eve.ID, domain.ChannelTopic(ch.ID), true},
		{outsider.ID, domain.ChannelTopic(ch.ID), false},
		{bob.ID, domain.ConversationTopic(conv.ID), true},
		{eve.ID, domain.ConversationTopic(conv.ID), false},
		{bob.ID, domain.ThreadTopic(dm.ID), true},
		{eve.ID, domain.ThreadTopic(dm.ID), false},
		{alice.ID, domain.UserTopic(alice.ID), true},
		{alice.ID, domain.UserTopic(bob.ID), false},
		{alice.ID, domain.ChannelTopic("missing"), false},
		{alice.ID, "bogus", false},
	}
	for _, tc := range cases {
		got, err := f.svc.CanSubscribe(ctx, tc.user, tc.topic)
		require.NoError(t, err, tc.topic)
		assert.Equal(t, tc.want, got, tc.topic)
	}
}
