package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/aroranishank/tms-frontend/internal/policy"
)

type formField struct {
	Label    string
	Value    string
	ReadOnly bool
}

type formKind int

const (
	formTaskCreate formKind = iota
	formTaskEdit
	formUserCreate
	formUserEdit
)

type formState struct {
	kind    formKind
	taskID  int64
	userID  int64
	ownerID int64
	fields  []formField
	index   int
}

const (
	taskFieldTitle = iota
	taskFieldDescription
	taskFieldPriority
	taskFieldStatus
	taskFieldDue
	taskFieldStart
	taskFieldEnd
)

// taskFieldWireKeys maps form rows to the backend field names policy checks
// run against.
var taskFieldWireKeys = []string{
	"title",
	"description",
	"priority",
	"status",
	"due_date",
	"start_datetime",
	"end_datetime",
}

func buildTaskFormFields(task *model.Task, level policy.Level) []formField {
	fields := []formField{
		{Label: "Title"},
		{Label: "Description"},
		{Label: "Priority (space/←→)"},
		{Label: "Status (space/←→)"},
		{Label: "Due (YYYY-MM-DD)"},
		{Label: "Start (YYYY-MM-DD)"},
		{Label: "End (YYYY-MM-DD)"},
	}

	if task == nil {
		fields[taskFieldPriority].Value = model.PriorityMedium
		fields[taskFieldStatus].Value = model.StatusPending
		return fields
	}

	fields[taskFieldTitle].Value = task.Title
	fields[taskFieldDescription].Value = task.Description
	fields[taskFieldPriority].Value = task.Priority
	fields[taskFieldStatus].Value = task.Status
	fields[taskFieldDue].Value = shortDate(taskDeadline(*task))
	fields[taskFieldStart].Value = shortDate(task.StartDatetime)
	fields[taskFieldEnd].Value = shortDate(task.EndDatetime)
	for i := range fields {
		if fields[i].Value == "-" {
			fields[i].Value = ""
		}
	}

	// Editing an existing task: rows outside the level's write allowance are
	// shown but locked.
	for i := range fields {
		fields[i].ReadOnly = !policy.CanWriteTaskField(level, taskFieldWireKeys[i])
	}
	return fields
}

func parseTaskForm(fields []formField) (model.TaskPayload, error) {
	due, err := parseDateValue(fields[taskFieldDue].Value)
	if err != nil {
		return model.TaskPayload{}, fmt.Errorf("invalid due date")
	}
	start, err := parseDateValue(fields[taskFieldStart].Value)
	if err != nil {
		return model.TaskPayload{}, fmt.Errorf("invalid start date")
	}
	end, err := parseDateValue(fields[taskFieldEnd].Value)
	if err != nil {
		return model.TaskPayload{}, fmt.Errorf("invalid end date")
	}

	return model.TaskPayload{
		Title:         strings.TrimSpace(fields[taskFieldTitle].Value),
		Description:   strings.TrimSpace(fields[taskFieldDescription].Value),
		Priority:      strings.TrimSpace(fields[taskFieldPriority].Value),
		Status:        strings.TrimSpace(fields[taskFieldStatus].Value),
		DueDate:       due,
		StartDatetime: start,
		EndDatetime:   end,
	}, nil
}

// parseDateValue accepts empty, a bare YYYY-MM-DD date, or a full timestamp
// and returns it unchanged. Bare dates get their time-of-day applied later,
// on the way to the wire.
func parseDateValue(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01-02", trimmed); err == nil {
		return trimmed, nil
	}
	if _, err := model.ParseTimestamp(trimmed); err == nil {
		return trimmed, nil
	}
	return "", fmt.Errorf("invalid date %q", trimmed)
}

const (
	userFieldUsername = iota
	userFieldEmail
	userFieldPassword
	userFieldAdmin
)

func buildUserFormFields(user *model.User) []formField {
	fields := []formField{
		{Label: "Username"},
		{Label: "Email"},
		{Label: "Password"},
		{Label: "Admin (space toggles)"},
	}

	if user == nil {
		fields[userFieldAdmin].Value = "no"
		return fields
	}

	fields[userFieldUsername].Value = user.Username
	fields[userFieldEmail].Value = user.Email
	fields[userFieldAdmin].Value = boolLabel(user.IsAdmin)
	return fields
}

// parseUserForm leaves the password empty on edits so an untouched password
// row never reaches the wire.
func parseUserForm(fields []formField) model.UserPayload {
	admin := strings.EqualFold(strings.TrimSpace(fields[userFieldAdmin].Value), "yes")
	return model.UserPayload{
		Username: strings.TrimSpace(fields[userFieldUsername].Value),
		Email:    strings.TrimSpace(fields[userFieldEmail].Value),
		Password: fields[userFieldPassword].Value,
		IsAdmin:  &admin,
	}
}

func boolLabel(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func isPriorityField(label string) bool {
	return strings.HasPrefix(label, "Priority")
}

func isStatusField(label string) bool {
	return strings.HasPrefix(label, "Status")
}

func isAdminField(label string) bool {
	return strings.HasPrefix(label, "Admin")
}

func isPasswordField(label string) bool {
	return strings.HasPrefix(label, "Password")
}

func cycleValue(order []string, current string, delta int) string {
	value := strings.TrimSpace(strings.ToLower(current))
	index := 0
	for i, option := range order {
		if option == value {
			index = i
			break
		}
	}
	index = (index + delta + len(order)) % len(order)
	return order[index]
}

func nextStatus(current string) string { return cycleValue(model.Statuses, current, 1) }
func prevStatus(current string) string { return cycleValue(model.Statuses, current, -1) }

func nextPriority(current string) string { return cycleValue(model.Priorities, current, 1) }
func prevPriority(current string) string { return cycleValue(model.Priorities, current, -1) }
