package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPages serves newest-first pages over a message slice; the cursor is
// the index of the next message to return.
type memPages struct {
	mu    sync.Mutex
	msgs  []Message
	calls int
	err   error
}

func newMemPages(n int) *memPages {
	p := &memPages{}
	for i := n; i > 0; i-- {
		p.msgs = append(p.msgs, Message{ID: fmt.Sprintf("m%02d", i)})
	}
	return p
}

func (p *memPages) prepend(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append([]Message{{ID: id}}, p.msgs...)
}

func (p *memPages) fetch(_ context.Context, cursor string, n int) (*MessagePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + n
	if end >= len(p.msgs) {
		end = len(p.msgs)
		return &MessagePage{Page: append([]Message(nil), p.msgs[start:end]...), IsDone: true}, nil
	}
	return &MessagePage{Page: append([]Message(nil), p.msgs[start:end]...), ContinueCursor: strconv.Itoa(end)}, nil
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestPaginatorStates(t *testing.T) {
	src := newMemPages(45)
	p := NewPaginator(src.fetch, "channel:c1", PaginatorOptions{})
	ctx := context.Background()

	assert.Equal(t, LoadingFirstPage, p.State())
	assert.False(t, p.LoadMore(ctx), "no LoadMore before the first page")

	require.NoError(t, p.LoadFirst(ctx))
	assert.Equal(t, CanLoadMore, p.State())
	assert.Len(t, p.Results(), 20)
	assert.Equal(t, "m45", p.Results()[0].ID)

	assert.True(t, p.LoadMore(ctx))
	assert.Len(t, p.Results(), 40)
	assert.Equal(t, CanLoadMore, p.State())

	assert.True(t, p.LoadMore(ctx))
	assert.Len(t, p.Results(), 45)
	assert.Equal(t, Exhausted, p.State())

	calls := src.calls
	assert.False(t, p.LoadMore(ctx))
	assert.Equal(t, calls, src.calls)
}

func TestPaginatorDropsDuplicates(t *testing.T) {
	src := newMemPages(30)
	p := NewPaginator(src.fetch, "channel:c1", PaginatorOptions{})
	ctx := context.Background()
	require.NoError(t, p.LoadFirst(ctx))

	// A message posted after the first page shifts the index cursor by one,
	// so the next page repeats m11.
	src.prepend("m31")
	require.True(t, p.LoadMore(ctx))

	got := ids(p.Results())
	assert.Len(t, got, 30)
	seen := map[string]bool{}
	for _, id := range got {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestPaginatorRefreshKeepsPageCount(t *testing.T) {
	src := newMemPages(50)
	p := NewPaginator(src.fetch, "channel:c1", PaginatorOptions{})
	ctx := context.Background()
	require.NoError(t, p.LoadFirst(ctx))
	require.True(t, p.LoadMore(ctx))

	src.prepend("m51")
	require.NoError(t, p.Refresh(ctx))

	got := ids(p.Results())
	assert.Len(t, got, 40)
	assert.Equal(t, "m51", got[0])
	assert.Equal(t, CanLoadMore, p.State())
}

func TestPaginatorLoadMoreFailureRecovers(t *testing.T) {
	src := newMemPages(25)
	p := NewPaginator(src.fetch, "channel:c1", PaginatorOptions{})
	ctx := context.Background()
	require.NoError(t, p.LoadFirst(ctx))

	src.err = errors.New("unavailable")
	assert.True(t, p.LoadMore(ctx))
	assert.Equal(t, CanLoadMore, p.State())
	assert.Len(t, p.Results(), 20)

	src.err = nil
	assert.True(t, p.LoadMore(ctx))
	assert.Equal(t, Exhausted, p.State())
	assert.Len(t, p.Results(), 25)
}

func TestPaginatorRunRefreshesOnInvalidation(t *testing.T) {
	src := newMemPages(5)
	live := newFakeLive()
	changed := make(chan []Message, 8)
	p := NewPaginator(src.fetch, "channel:c1", PaginatorOptions{
		Live:     live,
		OnChange: func(_ PageState, msgs []Message) { changed <- msgs },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case msgs := <-changed:
		assert.Len(t, msgs, 5)
	case <-time.After(2 * time.Second):
		t.Fatal("first page not loaded")
	}
	assert.Equal(t, Exhausted, p.State())

	src.prepend("m06")
	live.fire("channel:c1")
	select {
	case msgs := <-changed:
		assert.Equal(t, "m06", msgs[0].ID)
		assert.Len(t, msgs, 6)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh not triggered")
	}
}
