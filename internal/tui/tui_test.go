package tui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jesseduffield/gocui"
	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/api"
	"github.com/aroranishank/tms-frontend/internal/browse"
	"github.com/aroranishank/tms-frontend/internal/config"
	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/aroranishank/tms-frontend/internal/policy"
	"github.com/aroranishank/tms-frontend/internal/session"
)

type recordingFetch struct {
	mu    sync.Mutex
	items []model.Task
	calls []model.SearchQuery
}

func (f *recordingFetch) fetch(_ context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	return model.Page[model.Task]{
		Items: f.items,
		Pagination: model.Pagination{
			CurrentPage:  query.Page,
			TotalPages:   1,
			TotalItems:   len(f.items),
			ItemsPerPage: query.PageSize,
		},
	}, nil
}

func (f *recordingFetch) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *recordingFetch) call(i int) model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *recordingFetch) last() model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type stubTaskAPI struct {
	mu      sync.Mutex
	lastID  int64
	updates []model.TaskPayload
}

func (s *stubTaskAPI) CreateTask(_ context.Context, payload model.TaskPayload) (model.Task, error) {
	return model.Task{ID: 1, Title: payload.Title}, nil
}

func (s *stubTaskAPI) CreateTaskFor(_ context.Context, _ int64, payload model.TaskPayload) (model.Task, error) {
	return model.Task{ID: 1, Title: payload.Title}, nil
}

func (s *stubTaskAPI) UpdateTask(_ context.Context, taskID int64, payload model.TaskPayload) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID = taskID
	s.updates = append(s.updates, payload)
	return model.Task{ID: taskID, Status: payload.Status}, nil
}

func (s *stubTaskAPI) DeleteTask(_ context.Context, _ int64) error {
	return nil
}

func (s *stubTaskAPI) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *stubTaskAPI) lastUpdate() (int64, model.TaskPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID, s.updates[len(s.updates)-1]
}

type stubAuth struct {
	token    string
	loginErr error
	user     model.User
	meErr    error
}

func (a *stubAuth) Login(_ context.Context, _, _ string) (model.AuthToken, error) {
	if a.loginErr != nil {
		return model.AuthToken{}, a.loginErr
	}
	return model.AuthToken{AccessToken: a.token, TokenType: "bearer"}, nil
}

func (a *stubAuth) Me(_ context.Context) (model.User, error) {
	if a.meErr != nil {
		return model.User{}, a.meErr
	}
	return a.user, nil
}

func newTestStore(t *testing.T, auth session.Authenticator) *session.Store {
	t.Helper()
	cache, err := session.OpenCache(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return session.NewStore(cache, auth, zerolog.Nop())
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

func TestBuildTaskFormFieldsLocksByRole(t *testing.T) {
	task := &model.Task{ID: 7, Title: "Ship release", Status: "pending", Priority: "high"}

	regular := buildTaskFormFields(task, policy.Regular)
	wantLocked := map[string]bool{
		"title":       true,
		"description": true,
		"priority":    true,
		"due_date":    true,
	}
	for i, field := range regular {
		key := taskFieldWireKeys[i]
		if field.ReadOnly != wantLocked[key] {
			t.Errorf("regular field %s: ReadOnly = %v, want %v", key, field.ReadOnly, wantLocked[key])
		}
	}

	for i, field := range buildTaskFormFields(task, policy.Admin) {
		if field.ReadOnly {
			t.Errorf("admin field %s should be editable", taskFieldWireKeys[i])
		}
	}

	// Creating a task is not restricted, only editing an existing one.
	for i, field := range buildTaskFormFields(nil, policy.Regular) {
		if field.ReadOnly {
			t.Errorf("create field %s should be editable", taskFieldWireKeys[i])
		}
	}
}

func TestParseTaskFormDates(t *testing.T) {
	fields := buildTaskFormFields(nil, policy.Admin)
	fields[taskFieldTitle].Value = "Ship release"
	fields[taskFieldDue].Value = "whenever"
	if _, err := parseTaskForm(fields); err == nil {
		t.Fatalf("expected error for unparseable due date")
	}

	fields[taskFieldDue].Value = "2026-09-01"
	fields[taskFieldStart].Value = "2026-08-28T08:00:00Z"
	payload, err := parseTaskForm(fields)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if payload.DueDate != "2026-09-01" {
		t.Fatalf("due date = %q", payload.DueDate)
	}
	if payload.StartDatetime != "2026-08-28T08:00:00Z" {
		t.Fatalf("start datetime = %q", payload.StartDatetime)
	}
}

func TestCycleValueWraps(t *testing.T) {
	if got := nextStatus("pending"); got != "in_progress" {
		t.Fatalf("nextStatus(pending) = %q", got)
	}
	if got := nextStatus("completed"); got != "pending" {
		t.Fatalf("nextStatus(completed) = %q", got)
	}
	if got := prevStatus("pending"); got != "completed" {
		t.Fatalf("prevStatus(pending) = %q", got)
	}
	if got := nextPriority("medium"); got != "high" {
		t.Fatalf("nextPriority(medium) = %q", got)
	}
	if got := prevPriority("low"); got != "high" {
		t.Fatalf("prevPriority(low) = %q", got)
	}
}

func TestFormatRows(t *testing.T) {
	row := formatTaskRow(model.Task{Title: "Fix login"})
	for _, want := range []string{"Fix login", "pending", "medium", "due -"} {
		if !strings.Contains(row, want) {
			t.Errorf("task row %q missing %q", row, want)
		}
	}

	admin := formatUserRow(model.User{Username: "gandalf", IsAdmin: true})
	if !strings.Contains(admin, "admin") {
		t.Errorf("user row %q missing admin marker", admin)
	}
	member := formatUserRow(model.User{Username: "frodo", Email: "frodo@shire.test"})
	if !strings.Contains(member, "member") || !strings.Contains(member, "frodo@shire.test") {
		t.Errorf("user row %q", member)
	}
}

func TestPaneTitleIncludesPageLabel(t *testing.T) {
	p := model.Pagination{CurrentPage: 2, TotalPages: 5, TotalItems: 42}
	if got := paneTitle("1 Tasks", p, true); got != "1 Tasks (page 2/5, 42 items)" {
		t.Fatalf("paneTitle = %q", got)
	}
	if got := paneTitle("1 Tasks", model.Pagination{}, false); got != "1 Tasks" {
		t.Fatalf("paneTitle without pagination = %q", got)
	}
}

func TestComputeLayout(t *testing.T) {
	regular := computeLayout(120, 30, false)
	if regular.usersHeight != 0 {
		t.Fatalf("regular users height = %d", regular.usersHeight)
	}
	if regular.tasksWidth != 72 {
		t.Fatalf("tasks width = %d", regular.tasksWidth)
	}

	admin := computeLayout(120, 30, true)
	if admin.usersHeight < 4 {
		t.Fatalf("admin users height = %d", admin.usersHeight)
	}
}

func TestSearchEditorDrivesList(t *testing.T) {
	fetch := &recordingFetch{}
	u := &UI{focus: viewTasks, log: zerolog.Nop()}
	u.searchEditor = &searchEditor{ui: u}
	u.tasks = browse.NewController[model.Task](fetch.fetch, 10, 50*time.Millisecond, zerolog.Nop())
	u.searchActive = true

	for _, ch := range "task" {
		u.searchEditor.Edit(nil, 0, ch, gocui.ModNone)
	}
	if u.searchText != "task" {
		t.Fatalf("search text = %q", u.searchText)
	}
	if got := u.tasks.Query().Text; got != "task" {
		t.Fatalf("controller query = %q", got)
	}

	waitFor(t, "debounced fetch", func() bool { return fetch.count() == 1 })
	got := fetch.call(0)
	want := model.SearchQuery{Text: "task", Page: 1, PageSize: 10}
	if got != want {
		t.Fatalf("fetch query = %+v, want %+v", got, want)
	}

	u.searchEditor.Edit(nil, gocui.KeyBackspace, 0, gocui.ModNone)
	if u.searchText != "tas" {
		t.Fatalf("after backspace: %q", u.searchText)
	}
	u.searchEditor.Edit(nil, gocui.KeyCtrlU, 0, gocui.ModNone)
	if u.searchText != "" {
		t.Fatalf("after ctrl-u: %q", u.searchText)
	}

	// Clearing the box shows everything again.
	waitFor(t, "cleared fetch", func() bool {
		return fetch.count() >= 2 && fetch.last().Text == ""
	})
}

func TestSubmitFormKeepsFormOnBadInput(t *testing.T) {
	u := &UI{focus: viewTasks, log: zerolog.Nop()}
	u.form = &formState{kind: formTaskCreate, fields: buildTaskFormFields(nil, policy.Admin)}
	u.form.fields[taskFieldTitle].Value = "Ship release"
	u.form.fields[taskFieldDue].Value = "whenever"

	if err := u.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if u.form == nil {
		t.Fatalf("form closed despite bad date")
	}
	if u.status == "" {
		t.Fatalf("expected a status message")
	}

	u.form.fields[taskFieldDue].Value = ""
	u.form.fields[taskFieldTitle].Value = "   "
	if err := u.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if u.form == nil {
		t.Fatalf("form closed despite missing title")
	}
	if u.status != "title is required" {
		t.Fatalf("status = %q", u.status)
	}
}

func TestSubmitFormClosesOnSuccess(t *testing.T) {
	tasksAPI := &stubTaskAPI{}
	fetch := &recordingFetch{}
	u := &UI{focus: viewTasks, log: zerolog.Nop()}
	u.tasks = browse.NewController[model.Task](fetch.fetch, 10, 30*time.Millisecond, zerolog.Nop())
	u.taskMut = browse.NewTaskMutator(tasksAPI, u.tasks, zerolog.Nop())
	u.form = &formState{kind: formTaskCreate, fields: buildTaskFormFields(nil, policy.Admin)}
	u.form.fields[taskFieldTitle].Value = "Ship release"

	if err := u.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, "form closed", func() bool { return u.form == nil })
	waitFor(t, "list reloaded", func() bool { return fetch.count() >= 1 })
	if u.status != "" {
		t.Fatalf("status = %q", u.status)
	}
}

func TestCycleTaskStatusUpdatesSelected(t *testing.T) {
	tasksAPI := &stubTaskAPI{}
	fetch := &recordingFetch{items: []model.Task{{ID: 5, Title: "Fix login", Status: "pending"}}}

	u := &UI{focus: viewTasks, log: zerolog.Nop()}
	u.session = newTestStore(t, &stubAuth{})
	u.tasks = browse.NewController[model.Task](fetch.fetch, 10, 30*time.Millisecond, zerolog.Nop())
	u.taskMut = browse.NewTaskMutator(tasksAPI, u.tasks, zerolog.Nop())

	u.tasks.ForceReload()
	waitFor(t, "task list", func() bool { return len(u.tasks.Items()) == 1 })
	u.selectedTask = 0

	if err := u.cycleTaskStatus(nil, nil); err != nil {
		t.Fatalf("cycle status: %v", err)
	}

	waitFor(t, "status update", func() bool { return tasksAPI.updateCount() == 1 })
	taskID, payload := tasksAPI.lastUpdate()
	if taskID != 5 {
		t.Fatalf("updated task %d", taskID)
	}
	if payload.Status != "in_progress" {
		t.Fatalf("status = %q", payload.Status)
	}

	// A successful mutation refetches the list.
	waitFor(t, "reload after update", func() bool { return fetch.count() >= 2 })
	waitFor(t, "status cleared", func() bool { return u.status == "" })
}

func TestFailedLoginKeepsInput(t *testing.T) {
	auth := &stubAuth{loginErr: &api.Error{Status: 401, Message: "Incorrect username or password"}}
	u := &UI{log: zerolog.Nop()}
	u.session = newTestStore(t, auth)
	u.loginEditor = &loginEditor{ui: u}

	u.openLogin("")
	u.login.fields[0].Value = "frodo"
	u.login.fields[1].Value = "wrong"

	if err := u.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}
	waitFor(t, "login settled", func() bool { return u.login != nil && !u.login.busy })

	if u.login.fields[0].Value != "frodo" {
		t.Fatalf("username field reset to %q", u.login.fields[0].Value)
	}
	if !strings.Contains(u.login.message, "Incorrect username or password") {
		t.Fatalf("login message = %q", u.login.message)
	}
	if u.session.Current() != nil {
		t.Fatalf("session should stay empty after failed login")
	}
}

func TestSuccessfulLoginClosesFormAndLoadsTasks(t *testing.T) {
	auth := &stubAuth{token: "tok-1", user: model.User{ID: 3, Username: "frodo"}}
	fetch := &recordingFetch{items: []model.Task{{ID: 1, Title: "Pack bags"}}}

	u := &UI{log: zerolog.Nop()}
	u.session = newTestStore(t, auth)
	u.loginEditor = &loginEditor{ui: u}
	u.tasks = browse.NewController[model.Task](fetch.fetch, 10, 30*time.Millisecond, zerolog.Nop())

	u.openLogin("")
	u.login.fields[0].Value = "frodo"
	u.login.fields[1].Value = "pony"

	if err := u.submitLogin(nil, nil); err != nil {
		t.Fatalf("submit login: %v", err)
	}
	waitFor(t, "login closed", func() bool { return u.login == nil })

	user := u.session.Current()
	if user == nil || user.Username != "frodo" {
		t.Fatalf("current user = %+v", user)
	}
	waitFor(t, "initial task load", func() bool { return fetch.count() >= 1 })
	if u.focus != viewTasks {
		t.Fatalf("focus = %q", u.focus)
	}
}

func TestExpiredSessionReopensLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Could not validate credentials"}`))
	}))
	defer server.Close()

	store := newTestStore(t, &stubAuth{})
	client := api.NewClient(server.URL, time.Second, store, zerolog.Nop())
	cfg := config.Config{PageSize: 10, DebounceMs: 10, RequestTimeout: 1}

	u := NewUI(store, client, cfg, zerolog.Nop())
	u.tasks.ForceReload()

	waitFor(t, "login prompt", func() bool { return u.login != nil })
	if !strings.Contains(u.login.message, "session expired") {
		t.Fatalf("login message = %q", u.login.message)
	}
}
