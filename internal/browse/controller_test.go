package browse

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/model"
)

type fakeFetch struct {
	mu    sync.Mutex
	calls []model.SearchQuery
	page  model.Page[model.Task]
	err   error
}

func newFakeFetch() *fakeFetch {
	return &fakeFetch{
		page: model.Page[model.Task]{
			Items: []model.Task{{ID: 1, Title: "write report"}},
			Pagination: model.Pagination{
				CurrentPage:  1,
				TotalPages:   3,
				TotalItems:   25,
				ItemsPerPage: 10,
				HasNext:      true,
			},
		},
	}
}

func (f *fakeFetch) fetch(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if f.err != nil {
		return model.Page[model.Task]{}, f.err
	}
	page := f.page
	page.Pagination.CurrentPage = query.Page
	return page, nil
}

func (f *fakeFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetch) call(i int) model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeFetch) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type gatedCall struct {
	query model.SearchQuery
	reply chan gatedReply
}

type gatedReply struct {
	page model.Page[model.Task]
	err  error
}

func gatedFetch() (FetchFunc[model.Task], chan gatedCall) {
	calls := make(chan gatedCall, 8)
	fetch := func(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
		call := gatedCall{query: query, reply: make(chan gatedReply)}
		calls <- call
		reply := <-call.reply
		return reply.page, reply.err
	}
	return fetch, calls
}

func nextCall(t *testing.T, calls chan gatedCall) gatedCall {
	t.Helper()
	select {
	case call := <-calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("no fetch issued within deadline")
		return gatedCall{}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertNoMoreCalls(t *testing.T, f *fakeFetch, want int) {
	t.Helper()
	time.Sleep(120 * time.Millisecond)
	if got := f.callCount(); got != want {
		t.Fatalf("expected %d requests, got %d", want, got)
	}
}

func TestTypeAheadCoalescesIntoOneRequest(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 50*time.Millisecond, zerolog.Nop())

	c.SetSearchText("ta")
	c.SetSearchText("tas")
	c.SetSearchText("task")

	waitFor(t, "debounced fetch", func() bool { return f.callCount() == 1 })
	assertNoMoreCalls(t, f, 1)

	got := f.call(0)
	want := model.SearchQuery{Text: "task", Page: 1, PageSize: 10}
	if got != want {
		t.Fatalf("expected query %+v, got %+v", want, got)
	}
	if c.State() != StateApplied {
		t.Fatalf("expected applied state, got %v", c.State())
	}
}

func TestShortQueriesNeverFetch(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 20*time.Millisecond, zerolog.Nop())

	c.SetSearchText("t")
	c.SetSearchText("ta")

	assertNoMoreCalls(t, f, 0)
	if c.State() != StateIdle {
		t.Fatalf("expected idle state, got %v", c.State())
	}
	if got := c.Query().Text; got != "ta" {
		t.Fatalf("expected recorded text %q, got %q", "ta", got)
	}
}

func TestShowAllSentinelFetches(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 20*time.Millisecond, zerolog.Nop())

	c.SetSearchText(model.ShowAll)
	waitFor(t, "show-all fetch", func() bool { return f.callCount() == 1 })

	if got := f.call(0).Text; got != model.ShowAll {
		t.Fatalf("expected sentinel passed through, got %q", got)
	}
}

func TestNewSearchResetsToFirstPage(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	c.SetSearchText("")
	waitFor(t, "initial fetch", func() bool { return f.callCount() == 1 })

	c.SetPage(2)
	waitFor(t, "page fetch", func() bool { return f.callCount() == 2 })
	if got := f.call(1).Page; got != 2 {
		t.Fatalf("expected page 2 request, got %d", got)
	}

	c.SetSearchText("beta")
	waitFor(t, "search fetch", func() bool { return f.callCount() == 3 })

	got := f.call(2)
	if got.Text != "beta" || got.Page != 1 {
		t.Fatalf("expected new search on page 1, got %+v", got)
	}
}

func TestSetPageBounds(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	c.ForceReload()
	waitFor(t, "initial fetch", func() bool { return f.callCount() == 1 })

	c.SetPage(0)
	c.SetPage(4)
	assertNoMoreCalls(t, f, 1)

	c.SetPage(3)
	waitFor(t, "last page fetch", func() bool { return f.callCount() == 2 })
	if got := f.call(1).Page; got != 3 {
		t.Fatalf("expected page 3 request, got %d", got)
	}

	c.SetSearchText("xy")
	c.SetPage(2)
	assertNoMoreCalls(t, f, 2)
}

func TestForceReloadRepeatsCurrentQuery(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	c.SetSearchText("alpha")
	waitFor(t, "search fetch", func() bool { return f.callCount() == 1 })

	c.ForceReload()
	waitFor(t, "reload fetch", func() bool { return f.callCount() == 2 })

	if f.call(0) != f.call(1) {
		t.Fatalf("expected identical queries, got %+v then %+v", f.call(0), f.call(1))
	}
}

func TestForceReloadIgnoredBelowSearchThreshold(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	c.SetSearchText("ab")
	c.ForceReload()
	assertNoMoreCalls(t, f, 0)
}

func TestOutOfOrderSuccessDiscarded(t *testing.T) {
	fetch, calls := gatedFetch()
	c := NewController(fetch, 10, 5*time.Millisecond, zerolog.Nop())

	c.SetSearchText("alpha")
	older := nextCall(t, calls)

	c.SetSearchText("alphabet")
	newer := nextCall(t, calls)
	if newer.query.Text != "alphabet" {
		t.Fatalf("expected second request for %q, got %q", "alphabet", newer.query.Text)
	}

	newer.reply <- gatedReply{page: model.Page[model.Task]{
		Items:      []model.Task{{ID: 2, Title: "newest"}},
		Pagination: model.Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 1, ItemsPerPage: 10},
	}}
	waitFor(t, "newest result applied", func() bool {
		items := c.Items()
		return len(items) == 1 && items[0].Title == "newest"
	})

	older.reply <- gatedReply{page: model.Page[model.Task]{
		Items: []model.Task{{ID: 1, Title: "older"}},
	}}
	waitFor(t, "stale drop recorded", func() bool { return c.StaleDrops() == 1 })

	if items := c.Items(); len(items) != 1 || items[0].Title != "newest" {
		t.Fatalf("stale response overwrote the list: %+v", items)
	}
	if got := c.Query().Text; got != "alphabet" {
		t.Fatalf("expected query %q, got %q", "alphabet", got)
	}
	waitFor(t, "settled state", func() bool { return c.State() == StateApplied })
}

func TestOutOfOrderFailureDiscarded(t *testing.T) {
	fetch, calls := gatedFetch()
	c := NewController(fetch, 10, 5*time.Millisecond, zerolog.Nop())

	c.SetSearchText("alpha")
	older := nextCall(t, calls)

	c.SetSearchText("alphabet")
	newer := nextCall(t, calls)

	newer.reply <- gatedReply{page: model.Page[model.Task]{
		Items: []model.Task{{ID: 2, Title: "newest"}},
	}}
	waitFor(t, "newest result applied", func() bool { return len(c.Items()) == 1 })

	older.reply <- gatedReply{err: errors.New("slow backend gave up")}
	waitFor(t, "stale drop recorded", func() bool { return c.StaleDrops() == 1 })

	if err := c.Err(); err != nil {
		t.Fatalf("stale failure surfaced: %v", err)
	}
	if items := c.Items(); len(items) != 1 || items[0].Title != "newest" {
		t.Fatalf("stale failure cleared the list: %+v", items)
	}
	waitFor(t, "settled state", func() bool { return c.State() == StateApplied })
}

func TestFetchErrorClearsListKeepsQuery(t *testing.T) {
	f := newFakeFetch()
	f.setErr(errors.New("backend down"))
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	c.SetSearchText("alpha")
	waitFor(t, "failed fetch", func() bool { return c.State() == StateFailed })

	if c.Items() != nil {
		t.Fatalf("expected cleared list, got %+v", c.Items())
	}
	if c.Err() == nil {
		t.Fatalf("expected surfaced error")
	}
	if _, ok := c.Pagination(); ok {
		t.Fatalf("expected pagination dropped on failure")
	}
	if got := c.Query().Text; got != "alpha" {
		t.Fatalf("expected query kept, got %q", got)
	}

	f.setErr(nil)
	c.ForceReload()
	waitFor(t, "recovered fetch", func() bool { return c.State() == StateApplied })
	if len(c.Items()) != 1 {
		t.Fatalf("expected recovered list, got %+v", c.Items())
	}
	if c.Err() != nil {
		t.Fatalf("expected cleared error, got %v", c.Err())
	}
}

func TestOnChangeNotifies(t *testing.T) {
	f := newFakeFetch()
	c := NewController(f.fetch, 10, 10*time.Millisecond, zerolog.Nop())

	var notified atomic.Int64
	c.SetOnChange(func() { notified.Add(1) })

	c.SetSearchText("alpha")
	waitFor(t, "applied fetch", func() bool { return c.State() == StateApplied })

	if notified.Load() == 0 {
		t.Fatalf("expected change notifications")
	}
}
