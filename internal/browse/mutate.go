package browse

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/aroranishank/tms-frontend/internal/policy"
)

var (
	ErrMutationInFlight = errors.New("another change is still being saved")
	ErrTitleRequired    = errors.New("title is required")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
)

// TaskAPI is the slice of the backend client task mutations go through.
type TaskAPI interface {
	CreateTask(ctx context.Context, payload model.TaskPayload) (model.Task, error)
	CreateTaskFor(ctx context.Context, userID int64, payload model.TaskPayload) (model.Task, error)
	UpdateTask(ctx context.Context, taskID int64, payload model.TaskPayload) (model.Task, error)
	DeleteTask(ctx context.Context, taskID int64) error
}

// UserAPI is the slice of the backend client user mutations go through.
type UserAPI interface {
	CreateUser(ctx context.Context, payload model.UserPayload) (model.User, error)
	UpdateUser(ctx context.Context, userID int64, payload model.UserPayload) (model.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// Reloader is the list a mutator refreshes after each successful write.
type Reloader interface {
	ForceReload()
}

// inflight tracks which mutation kinds are currently being saved. One
// mutation of each kind runs at a time; overlapping calls are rejected,
// not queued.
type inflight struct {
	mu       sync.Mutex
	creating bool
	updating bool
	removing bool
}

func (f *inflight) begin(flag *bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

func (f *inflight) end(flag *bool) {
	f.mu.Lock()
	*flag = false
	f.mu.Unlock()
}

func (f *inflight) Creating() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creating
}

func (f *inflight) Updating() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updating
}

func (f *inflight) Removing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removing
}

// TaskMutator validates, normalizes, and submits task writes, then reloads
// the owning list. The server response is authoritative; nothing is patched
// into the list locally.
type TaskMutator struct {
	inflight
	api      TaskAPI
	list     Reloader
	validate *validator.Validate
	log      zerolog.Logger
}

func NewTaskMutator(api TaskAPI, list Reloader, log zerolog.Logger) *TaskMutator {
	return &TaskMutator{
		api:      api,
		list:     list,
		validate: validator.New(),
		log:      log,
	}
}

func (m *TaskMutator) Create(ctx context.Context, payload model.TaskPayload) (model.Task, error) {
	if !m.begin(&m.creating) {
		return model.Task{}, ErrMutationInFlight
	}
	defer m.end(&m.creating)

	payload, err := m.prepare(payload, true)
	if err != nil {
		return model.Task{}, err
	}
	task, err := m.api.CreateTask(ctx, payload)
	if err != nil {
		return model.Task{}, err
	}
	m.log.Info().Int64("task_id", task.ID).Str("title", task.Title).Msg("task created")
	m.list.ForceReload()
	return task, nil
}

// CreateFor creates a task on behalf of another user. Admin only; the
// backend enforces it, this just routes to the admin endpoint.
func (m *TaskMutator) CreateFor(ctx context.Context, userID int64, payload model.TaskPayload) (model.Task, error) {
	if !m.begin(&m.creating) {
		return model.Task{}, ErrMutationInFlight
	}
	defer m.end(&m.creating)

	payload, err := m.prepare(payload, true)
	if err != nil {
		return model.Task{}, err
	}
	task, err := m.api.CreateTaskFor(ctx, userID, payload)
	if err != nil {
		return model.Task{}, err
	}
	m.log.Info().Int64("task_id", task.ID).Int64("owner_id", userID).Msg("task created for user")
	m.list.ForceReload()
	return task, nil
}

// Update submits a partial task update. The payload is filtered to the
// level's writable fields first, so a regular user's edit carries exactly
// the fields policy allows no matter what the caller filled in.
func (m *TaskMutator) Update(ctx context.Context, taskID int64, payload model.TaskPayload, level policy.Level) (model.Task, error) {
	if !m.begin(&m.updating) {
		return model.Task{}, ErrMutationInFlight
	}
	defer m.end(&m.updating)

	payload = policy.FilterTaskUpdate(payload, level)
	payload, err := m.prepare(payload, false)
	if err != nil {
		return model.Task{}, err
	}
	task, err := m.api.UpdateTask(ctx, taskID, payload)
	if err != nil {
		return model.Task{}, err
	}
	m.log.Info().Int64("task_id", taskID).Msg("task updated")
	m.list.ForceReload()
	return task, nil
}

func (m *TaskMutator) Remove(ctx context.Context, taskID int64) error {
	if !m.begin(&m.removing) {
		return ErrMutationInFlight
	}
	defer m.end(&m.removing)

	if err := m.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	m.log.Info().Int64("task_id", taskID).Msg("task deleted")
	m.list.ForceReload()
	return nil
}

func (m *TaskMutator) prepare(payload model.TaskPayload, requireTitle bool) (model.TaskPayload, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	if requireTitle && payload.Title == "" {
		return model.TaskPayload{}, ErrTitleRequired
	}
	if err := m.validate.Struct(payload); err != nil {
		return model.TaskPayload{}, err
	}
	return NormalizeTaskDates(payload), nil
}

// UserMutator validates and submits user writes, then reloads the owning
// list. Admin screens only.
type UserMutator struct {
	inflight
	api      UserAPI
	list     Reloader
	validate *validator.Validate
	log      zerolog.Logger
}

func NewUserMutator(api UserAPI, list Reloader, log zerolog.Logger) *UserMutator {
	return &UserMutator{
		api:      api,
		list:     list,
		validate: validator.New(),
		log:      log,
	}
}

func (m *UserMutator) Create(ctx context.Context, payload model.UserPayload) (model.User, error) {
	if !m.begin(&m.creating) {
		return model.User{}, ErrMutationInFlight
	}
	defer m.end(&m.creating)

	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" {
		return model.User{}, ErrUsernameRequired
	}
	if payload.Password == "" {
		return model.User{}, ErrPasswordRequired
	}
	if err := m.validate.Struct(payload); err != nil {
		return model.User{}, err
	}
	user, err := m.api.CreateUser(ctx, payload)
	if err != nil {
		return model.User{}, err
	}
	m.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user created")
	m.list.ForceReload()
	return user, nil
}

func (m *UserMutator) Update(ctx context.Context, userID int64, payload model.UserPayload) (model.User, error) {
	if !m.begin(&m.updating) {
		return model.User{}, ErrMutationInFlight
	}
	defer m.end(&m.updating)

	payload.Username = strings.TrimSpace(payload.Username)
	if err := m.validate.Struct(payload); err != nil {
		return model.User{}, err
	}
	user, err := m.api.UpdateUser(ctx, userID, payload)
	if err != nil {
		return model.User{}, err
	}
	m.log.Info().Int64("user_id", userID).Msg("user updated")
	m.list.ForceReload()
	return user, nil
}

func (m *UserMutator) Remove(ctx context.Context, userID int64) error {
	if !m.begin(&m.removing) {
		return ErrMutationInFlight
	}
	defer m.end(&m.removing)

	if err := m.api.DeleteUser(ctx, userID); err != nil {
		return err
	}
	m.log.Info().Int64("user_id", userID).Msg("user deleted")
	m.list.ForceReload()
	return nil
}

// NormalizeTaskDates upgrades bare YYYY-MM-DD dates to the full timestamps
// the backend stores. Date-only deadlines become end of day UTC, date-only
// starts become start of day UTC. Values that already carry a time pass
// through untouched, and completion timestamps are server-assigned so they
// are never sent at all.
func NormalizeTaskDates(payload model.TaskPayload) model.TaskPayload {
	payload.DueDate = endOfDay(payload.DueDate)
	payload.DueDatetime = endOfDay(payload.DueDatetime)
	payload.StartDatetime = startOfDay(payload.StartDatetime)
	payload.EndDatetime = endOfDay(payload.EndDatetime)
	return payload
}

func bareDate(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

func endOfDay(value string) string {
	if bareDate(value) {
		return value + "T23:59:59.000Z"
	}
	return value
}

func startOfDay(value string) string {
	if bareDate(value) {
		return value + "T00:00:00.000Z"
	}
	return value
}
