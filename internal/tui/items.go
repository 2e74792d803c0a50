package tui

import (
	"fmt"
	"strings"

	"github.com/aroranishank/tms-frontend/internal/model"
)

func shortDate(ts *model.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Format("2006-01-02")
}

func shortDatetime(ts *model.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Format("2006-01-02 15:04")
}

// taskDeadline prefers the precise deadline when the backend sent one and
// falls back to the coarse date column.
func taskDeadline(task model.Task) *model.Timestamp {
	if task.DueDatetime != nil && !task.DueDatetime.IsZero() {
		return task.DueDatetime
	}
	return task.DueDate
}

func formatTaskRow(task model.Task) string {
	status := task.Status
	if status == "" {
		status = model.StatusPending
	}
	priority := task.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	return fmt.Sprintf("%s | %s | %s | due %s", task.Title, status, priority, shortDate(taskDeadline(task)))
}

func formatUserRow(user model.User) string {
	role := "member"
	if user.IsAdmin {
		role = "admin"
	}
	email := user.Email
	if email == "" {
		email = "-"
	}
	return fmt.Sprintf("%s | %s | %s", user.Username, email, role)
}

func formatPageLabel(p model.Pagination, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("page %d/%d, %d items", p.CurrentPage, p.TotalPages, p.TotalItems)
}

func detailTaskLines(task model.Task) []string {
	lines := []string{
		task.Title,
		fmt.Sprintf("Status: %s", task.Status),
		fmt.Sprintf("Priority: %s", task.Priority),
		fmt.Sprintf("Due: %s", shortDatetime(taskDeadline(task))),
		fmt.Sprintf("Start: %s", shortDatetime(task.StartDatetime)),
		fmt.Sprintf("End: %s", shortDatetime(task.EndDatetime)),
	}
	if task.CompletionDatetime != nil && !task.CompletionDatetime.IsZero() {
		lines = append(lines, fmt.Sprintf("Completed: %s", shortDatetime(task.CompletionDatetime)))
	}
	if task.OwnerID != nil {
		lines = append(lines, fmt.Sprintf("Owner: #%d", *task.OwnerID))
	}
	if desc := strings.TrimSpace(task.Description); desc != "" {
		lines = append(lines, "", desc)
	}
	return lines
}

func detailUserLines(user model.User) []string {
	role := "member"
	if user.IsAdmin {
		role = "admin"
	}
	lines := []string{
		user.Username,
		fmt.Sprintf("Email: %s", user.Email),
		fmt.Sprintf("Role: %s", role),
	}
	if user.CreatedAt != nil && !user.CreatedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Created: %s", shortDatetime(user.CreatedAt)))
	}
	return lines
}
