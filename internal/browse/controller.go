// Package browse drives the searchable, paginated list views. A Controller
// owns one view's query state and fetch lifecycle; mutators push create,
// update, and delete calls through the API and reload the owning list.
package browse

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/model"
)

// FetchFunc loads one page of results for a query.
type FetchFunc[T any] func(ctx context.Context, query model.SearchQuery) (model.Page[T], error)

// State describes where a controller is in its fetch lifecycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateFetching
	StateApplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "typing"
	case StateFetching:
		return "loading"
	case StateApplied:
		return "ready"
	case StateFailed:
		return "error"
	default:
		return "idle"
	}
}

const (
	DefaultPageSize = 10
	DefaultDebounce = 400 * time.Millisecond

	minSearchRunes = 3
)

// Searchable reports whether a search text is allowed to reach the backend.
// Empty text and the "*" sentinel mean "show all"; anything else needs at
// least minSearchRunes characters so single keystrokes never fan out into
// requests.
func Searchable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == model.ShowAll {
		return true
	}
	return utf8.RuneCountInString(trimmed) >= minSearchRunes
}

// Controller serializes search text changes, page changes, and reloads for
// one list view. Responses are applied in issue order: every fetch gets a
// sequence number and a response only lands if nothing newer has landed
// already. In-flight requests are never cancelled, late ones are dropped.
type Controller[T any] struct {
	fetch    FetchFunc[T]
	debounce time.Duration
	log      zerolog.Logger

	mu             sync.Mutex
	query          model.SearchQuery
	items          []T
	pagination     model.Pagination
	havePagination bool
	state          State
	lastErr        error

	timer    *time.Timer
	timerGen uint64

	nextSeq    uint64
	appliedSeq uint64
	fetching   int
	staleDrops uint64

	onChange func()
}

func NewController[T any](fetch FetchFunc[T], pageSize int, debounce time.Duration, log zerolog.Logger) *Controller[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Controller[T]{
		fetch:    fetch,
		debounce: debounce,
		log:      log,
		query:    model.SearchQuery{Page: 1, PageSize: pageSize},
	}
}

// SetOnChange registers a hook invoked after every observable state change.
// The hook runs outside the controller lock and may call accessors freely.
func (c *Controller[T]) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetSearchText records a new search text and arms the debounce timer. The
// recorded text is visible immediately; the fetch only fires if the text is
// still current when the timer expires, and always for page 1.
func (c *Controller[T]) SetSearchText(text string) {
	c.mu.Lock()
	c.query.Text = text
	c.cancelTimerLocked()
	if !Searchable(text) {
		c.state = c.settledStateLocked()
		c.mu.Unlock()
		c.notify()
		return
	}
	c.state = StateDebouncing
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() { c.debounceExpired(gen) })
	c.mu.Unlock()
	c.notify()
}

func (c *Controller[T]) debounceExpired(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.query.Page = 1
	query := c.query
	seq := c.beginFetchLocked()
	c.mu.Unlock()
	c.notify()
	c.run(seq, query)
}

// SetPage jumps to a page immediately, without debouncing. Out-of-range
// pages are ignored; so is paging while the current text is below the
// search threshold.
func (c *Controller[T]) SetPage(page int) {
	c.mu.Lock()
	if page < 1 || (c.havePagination && page > c.pagination.TotalPages) {
		c.mu.Unlock()
		return
	}
	if !Searchable(c.query.Text) {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	c.query.Page = page
	query := c.query
	seq := c.beginFetchLocked()
	c.mu.Unlock()
	c.notify()
	go c.run(seq, query)
}

func (c *Controller[T]) NextPage() { c.SetPage(c.Query().Page + 1) }
func (c *Controller[T]) PrevPage() { c.SetPage(c.Query().Page - 1) }

// ForceReload re-issues the current query at the current page, bypassing the
// debounce. Mutators call it after every successful write.
func (c *Controller[T]) ForceReload() {
	c.mu.Lock()
	if !Searchable(c.query.Text) {
		c.mu.Unlock()
		return
	}
	c.cancelTimerLocked()
	query := c.query
	seq := c.beginFetchLocked()
	c.mu.Unlock()
	c.notify()
	go c.run(seq, query)
}

// cancelTimerLocked invalidates any armed debounce timer. Bumping the
// generation also covers the window where the timer already fired but its
// callback has not taken the lock yet.
func (c *Controller[T]) cancelTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller[T]) beginFetchLocked() uint64 {
	c.nextSeq++
	c.fetching++
	c.state = StateFetching
	return c.nextSeq
}

func (c *Controller[T]) run(seq uint64, query model.SearchQuery) {
	page, err := c.fetch(context.Background(), query)

	c.mu.Lock()
	c.fetching--
	if seq <= c.appliedSeq {
		c.staleDrops++
		c.log.Debug().
			Uint64("seq", seq).
			Uint64("applied_seq", c.appliedSeq).
			Str("search", query.Text).
			Msg("dropping out-of-order list response")
		if c.fetching == 0 && c.state == StateFetching {
			c.state = c.settledStateLocked()
		}
		c.mu.Unlock()
		c.notify()
		return
	}
	c.appliedSeq = seq

	if err != nil {
		c.items = nil
		c.havePagination = false
		c.lastErr = err
		c.state = StateFailed
		c.log.Warn().Err(err).
			Str("search", query.Text).
			Int("page", query.Page).
			Msg("list fetch failed")
	} else {
		c.items = page.Items
		c.pagination = page.Pagination
		c.havePagination = true
		c.lastErr = nil
		c.state = StateApplied
	}
	if c.fetching > 0 {
		c.state = StateFetching
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller[T]) settledStateLocked() State {
	switch {
	case c.fetching > 0:
		return StateFetching
	case c.lastErr != nil:
		return StateFailed
	case c.appliedSeq > 0:
		return StateApplied
	default:
		return StateIdle
	}
}

func (c *Controller[T]) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Items returns the last applied result list. It is nil after a failed
// fetch and before the first successful one.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Pagination returns the last applied pagination block and whether one has
// been applied at all.
func (c *Controller[T]) Pagination() (model.Pagination, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagination, c.havePagination
}

// Query returns the current query, including text that has not been
// dispatched yet.
func (c *Controller[T]) Query() model.SearchQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last applied fetch, or nil after a success.
func (c *Controller[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// InFlight returns how many fetches have been issued but not resolved.
func (c *Controller[T]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// StaleDrops counts responses discarded because a newer one had already
// been applied.
func (c *Controller[T]) StaleDrops() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleDrops
}
