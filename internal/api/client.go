package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenSource supplies the bearer token for outbound requests. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed-token TokenSource.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

// Client wraps the backend's JSON-over-HTTP API. It owns request building,
// auth headers, payload serialization, and error normalization; callers only
// ever see typed results or an *Error.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

func (c *Client) Login(ctx context.Context, username, password string) (model.AuthToken, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var token model.AuthToken
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &token)
	if err != nil {
		return model.AuthToken{}, err
	}
	return token, nil
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, "", &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) ListTasks(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
	return listPage[model.Task](ctx, c, "/tasks", query)
}

// ListAdminTasks lists every user's tasks; the backend rejects it for
// non-admin tokens.
func (c *Client) ListAdminTasks(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error) {
	return listPage[model.Task](ctx, c, "/admin/tasks", query)
}

func (c *Client) CreateTask(ctx context.Context, payload model.TaskPayload) (model.Task, error) {
	var task model.Task
	if err := c.sendJSON(ctx, http.MethodPost, "/tasks", payload, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// CreateTaskFor creates a task owned by another user (admin only).
func (c *Client) CreateTaskFor(ctx context.Context, userID int64, payload model.TaskPayload) (model.Task, error) {
	var task model.Task
	path := fmt.Sprintf("/admin/users/%d/tasks", userID)
	if err := c.sendJSON(ctx, http.MethodPost, path, payload, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID int64, payload model.TaskPayload) (model.Task, error) {
	var task model.Task
	path := fmt.Sprintf("/tasks/%d", taskID)
	if err := c.sendJSON(ctx, http.MethodPut, path, payload, &task); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", taskID), nil, nil, "", nil)
}

func (c *Client) ListUsers(ctx context.Context, query model.SearchQuery) (model.Page[model.User], error) {
	return listPage[model.User](ctx, c, "/users", query)
}

func (c *Client) CreateUser(ctx context.Context, payload model.UserPayload) (model.User, error) {
	var user model.User
	if err := c.sendJSON(ctx, http.MethodPost, "/users", payload, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID int64, payload model.UserPayload) (model.User, error) {
	var user model.User
	path := fmt.Sprintf("/users/%d", userID)
	if err := c.sendJSON(ctx, http.MethodPut, path, payload, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", userID), nil, nil, "", nil)
}

func listPage[T any](ctx context.Context, c *Client, path string, query model.SearchQuery) (model.Page[T], error) {
	params := url.Values{}
	if text := searchParam(query.Text); text != "" {
		params.Set("search", text)
	}
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("limit", strconv.Itoa(query.PageSize))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, params, nil, "", &raw); err != nil {
		return model.Page[T]{}, err
	}
	return decodePage[T](raw, query.PageSize)
}

// The backend treats an absent search parameter as "show all"; the UI's "*"
// sentinel means the same thing, so it never reaches the wire.
func searchParam(text string) string {
	if text == model.ShowAll {
		return ""
	}
	return strings.TrimSpace(text)
}

// decodePage accepts both list response shapes, the {tasks|users, pagination}
// envelope and the bare array older deployments return, and normalizes them
// into one Page so nothing downstream branches on shape.
func decodePage[T any](raw []byte, limit int) (model.Page[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.Page[T]{Pagination: singlePage(0, limit)}, nil
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return model.Page[T]{}, fmt.Errorf("decode list: %w", err)
		}
		return model.Page[T]{Items: items, Pagination: singlePage(len(items), limit)}, nil
	}

	var envelope struct {
		Tasks      []T               `json:"tasks"`
		Users      []T               `json:"users"`
		Pagination *model.Pagination `json:"pagination"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return model.Page[T]{}, fmt.Errorf("decode list: %w", err)
	}

	items := envelope.Tasks
	if items == nil {
		items = envelope.Users
	}

	page := model.Page[T]{Items: items}
	if envelope.Pagination != nil {
		page.Pagination = *envelope.Pagination
	} else {
		page.Pagination = singlePage(len(items), limit)
	}
	return page, nil
}

func singlePage(count, limit int) model.Pagination {
	if limit <= 0 {
		limit = count
	}
	return model.Pagination{
		CurrentPage:  1,
		TotalPages:   1,
		TotalItems:   count,
		ItemsPerPage: limit,
	}
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.do(ctx, method, path, nil, bytes.NewReader(data), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).Err(err).Msg("api request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("api call")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newError(resp.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
