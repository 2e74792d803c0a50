// Package web serves a small read-only dashboard over the same task API the
// terminal client talks to. It holds no state of its own; every page load is
// a fresh upstream query.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aroranishank/tms-frontend/internal/browse"
	"github.com/aroranishank/tms-frontend/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.tmpl"))

// TaskLister is the read slice of the upstream client the dashboard needs.
type TaskLister interface {
	ListTasks(ctx context.Context, query model.SearchQuery) (model.Page[model.Task], error)
}

type Server struct {
	lister   TaskLister
	pageSize int
	log      zerolog.Logger
}

func NewServer(lister TaskLister, pageSize int, log zerolog.Logger) *Server {
	if pageSize <= 0 {
		pageSize = browse.DefaultPageSize
	}
	return &Server{lister: lister, pageSize: pageSize, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/api/tasks", s.apiTasksHandler)
	return mux
}

type indexData struct {
	Query    string
	Notice   string
	Tasks    []model.Task
	Page     model.Pagination
	HasPager bool
	PrevPage int
	NextPage int
}

type taskEnvelope struct {
	Tasks      []model.Task     `json:"tasks"`
	Pagination model.Pagination `json:"pagination"`
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	query := s.queryFromRequest(r)
	data := indexData{Query: query.Text}

	// Same minimum-length rule as the terminal client: short fragments
	// never reach the API.
	if !browse.Searchable(query.Text) {
		data.Notice = "keep typing: search needs at least 3 characters (or * for everything)"
		s.render(w, data)
		return
	}

	page, err := s.lister.ListTasks(r.Context(), query)
	if err != nil {
		s.log.Error().Err(err).Str("search", query.Text).Msg("dashboard task fetch failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}

	data.Tasks = page.Items
	data.Page = page.Pagination
	data.HasPager = page.Pagination.TotalPages > 1
	data.PrevPage = query.Page - 1
	data.NextPage = query.Page + 1
	s.render(w, data)
}

func (s *Server) render(w http.ResponseWriter, data indexData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
}

func (s *Server) apiTasksHandler(w http.ResponseWriter, r *http.Request) {
	query := s.queryFromRequest(r)
	if !browse.Searchable(query.Text) {
		writeJSON(w, taskEnvelope{Tasks: []model.Task{}})
		return
	}

	page, err := s.lister.ListTasks(r.Context(), query)
	if err != nil {
		s.log.Error().Err(err).Str("search", query.Text).Msg("dashboard task fetch failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}

	writeJSON(w, taskEnvelope{Tasks: page.Items, Pagination: page.Pagination})
}

func (s *Server) queryFromRequest(r *http.Request) model.SearchQuery {
	text := strings.TrimSpace(r.URL.Query().Get("search"))

	page := 1
	if value := strings.TrimSpace(r.URL.Query().Get("page")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			page = parsed
		}
	}

	return model.SearchQuery{Text: text, Page: page, PageSize: s.pageSize}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
