package model

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Statuses and Priorities are the values the backend accepts, in cycle order.
var (
	Statuses   = []string{StatusPending, StatusInProgress, StatusCompleted}
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
)

// ShowAll is the explicit "show everything" search sentinel. It is kept in
// the displayed query but never transmitted.
const ShowAll = "*"

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

type Task struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	Status             string     `json:"status,omitempty"`
	DueDate            *Timestamp `json:"due_date,omitempty"`
	DueDatetime        *Timestamp `json:"due_datetime,omitempty"`
	StartDatetime      *Timestamp `json:"start_datetime,omitempty"`
	EndDatetime        *Timestamp `json:"end_datetime,omitempty"`
	CompletionDatetime *Timestamp `json:"completion_datetime,omitempty"`
	CreatedAt          *Timestamp `json:"created_at,omitempty"`
	UpdatedAt          *Timestamp `json:"updated_at,omitempty"`
	OwnerID            *int64     `json:"owner_id,omitempty"`
}

// AuthToken is the login exchange response.
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SearchQuery is what a list view asks the backend for. Page starts at 1.
type SearchQuery struct {
	Text     string
	Page     int
	PageSize int
}

// Pagination mirrors the backend's pagination block.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalItems   int  `json:"total_items"`
	ItemsPerPage int  `json:"items_per_page"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
}

// Page is one fetched snapshot of a list view. It is replaced wholesale on
// every successful fetch and never patched in place.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// TaskPayload is a create or partial-update body. Zero fields are omitted
// from the wire so a partial update only carries what the caller set.
type TaskPayload struct {
	Title         string `json:"title,omitempty" validate:"omitempty,max=255"`
	Description   string `json:"description,omitempty"`
	Priority      string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed"`
	DueDate       string `json:"due_date,omitempty"`
	DueDatetime   string `json:"due_datetime,omitempty"`
	StartDatetime string `json:"start_datetime,omitempty"`
	EndDatetime   string `json:"end_datetime,omitempty"`
}

type UserPayload struct {
	Username string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
	IsAdmin  *bool  `json:"is_admin,omitempty"`
}
