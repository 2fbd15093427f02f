package client

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type PageState int

const (
	LoadingFirstPage PageState = iota
	CanLoadMore
	LoadingMore
	Exhausted
)

func (s PageState) String() string {
	switch s {
	case LoadingFirstPage:
		return "LoadingFirstPage"
	case CanLoadMore:
		return "CanLoadMore"
	case LoadingMore:
		return "LoadingMore"
	case Exhausted:
		return "Exhausted"
	}
	return "unknown"
}

// PageSize is used for the first load and every LoadMore.
const PageSize = 20

// PageFetcher loads numItems messages strictly older than cursor; an empty
// cursor means newest first.
type PageFetcher func(ctx context.Context, cursor string, numItems int) (*MessagePage, error)

type PaginatorOptions struct {
	Live     Invalidations
	OnChange func(PageState, []Message)
	Log      *zap.SugaredLogger
}

// Paginator accumulates a reverse-chronological message list page by page.
type Paginator struct {
	fetch PageFetcher
	topic string
	opts  PaginatorOptions

	op sync.Mutex // serializes fetches

	mu      sync.RWMutex
	state   PageState
	results []Message
	cursor  string
	pages   int
}

func NewPaginator(fetch PageFetcher, topic string, opts PaginatorOptions) *Paginator {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	return &Paginator{fetch: fetch, topic: topic, opts: opts, state: LoadingFirstPage}
}

// MessagePaginator pages through scope using c.
func (c *Client) MessagePaginator(scope Scope, opts PaginatorOptions) *Paginator {
	return NewPaginator(func(ctx context.Context, cursor string, n int) (*MessagePage, error) {
		return c.Messages(ctx, scope, cursor, n)
	}, scope.Topic(), opts)
}

func (p *Paginator) State() PageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Paginator) Results() []Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Message, len(p.results))
	copy(out, p.results)
	return out
}

// LoadFirst loads the first page. It only acts in LoadingFirstPage; a failed
// first load leaves the paginator there so it can be retried.
func (p *Paginator) LoadFirst(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()
	if p.State() != LoadingFirstPage {
		return nil
	}
	page, err := p.fetch(ctx, "", PageSize)
	if err != nil {
		p.opts.Log.Warnw("first page failed", "topic", p.topic, "err", err)
		return err
	}
	p.mu.Lock()
	p.results = nil
	p.pages = 1
	p.appendLocked(page)
	p.mu.Unlock()
	p.changed()
	return nil
}

// LoadMore fetches the next page. It is a no-op returning false unless the
// state is CanLoadMore.
func (p *Paginator) LoadMore(ctx context.Context) bool {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	if p.state != CanLoadMore {
		p.mu.Unlock()
		return false
	}
	p.state = LoadingMore
	cursor := p.cursor
	p.mu.Unlock()
	p.changed()

	page, err := p.fetch(ctx, cursor, PageSize)
	p.mu.Lock()
	if err != nil {
		p.state = CanLoadMore
		p.mu.Unlock()
		p.opts.Log.Warnw("load more failed", "topic", p.topic, "err", err)
		p.changed()
		return true
	}
	p.pages++
	p.appendLocked(page)
	p.mu.Unlock()
	p.changed()
	return true
}

// Refresh reloads every page loaded so far from the newest message,
// keeping the page count.
func (p *Paginator) Refresh(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.RLock()
	pages := p.pages
	p.mu.RUnlock()
	if pages == 0 {
		return nil
	}

	var (
		loaded []*MessagePage
		cursor string
	)
	for i := 0; i < pages; i++ {
		page, err := p.fetch(ctx, cursor, PageSize)
		if err != nil {
			p.opts.Log.Warnw("refresh failed", "topic", p.topic, "err", err)
			return err
		}
		loaded = append(loaded, page)
		if page.IsDone {
			break
		}
		cursor = page.ContinueCursor
	}

	p.mu.Lock()
	p.results = nil
	for _, page := range loaded {
		p.appendLocked(page)
	}
	p.mu.Unlock()
	p.changed()
	return nil
}

// Run loads the first page and refreshes on every live invalidation of the
// scope's topic until ctx ends.
func (p *Paginator) Run(ctx context.Context) {
	signal := make(chan struct{}, 1)
	if p.opts.Live != nil && p.topic != "" {
		cancel := p.opts.Live.Subscribe(p.topic, func(Invalidation) {
			select {
			case signal <- struct{}{}:
			default:
			}
		})
		defer cancel()
	}
	_ = p.LoadFirst(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			if p.State() == LoadingFirstPage {
				_ = p.LoadFirst(ctx)
				continue
			}
			_ = p.Refresh(ctx)
		}
	}
}

// appendLocked adds page items not already present and moves the state on.
func (p *Paginator) appendLocked(page *MessagePage) {
	seen := make(map[string]struct{}, len(p.results))
	for _, m := range p.results {
		seen[m.ID] = struct{}{}
	}
	for _, m := range page.Page {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		p.results = append(p.results, m)
	}
	p.cursor = page.ContinueCursor
	if page.IsDone {
		p.state = Exhausted
	} else {
		p.state = CanLoadMore
	}
}

func (p *Paginator) changed() {
	if p.opts.OnChange == nil {
		return
	}
	p.opts.OnChange(p.State(), p.Results())
}
