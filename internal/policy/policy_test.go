package policy

import (
	"encoding/json"
	"testing"

	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTaskPayload() model.TaskPayload {
	return model.TaskPayload{
		Title:         "quarterly report",
		Description:   "numbers for Q2",
		Priority:      model.PriorityHigh,
		Status:        model.StatusInProgress,
		DueDate:       "2024-05-01",
		DueDatetime:   "2024-05-01T23:59:59.000Z",
		StartDatetime: "2024-04-01T00:00:00.000Z",
		EndDatetime:   "2024-05-01T23:59:59.000Z",
	}
}

func TestFilterTaskUpdateMatchesFieldTable(t *testing.T) {
	filtered := FilterTaskUpdate(fullTaskPayload(), Regular)

	data, err := json.Marshal(filtered)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(data, &keys))

	assert.Len(t, keys, len(RegularTaskUpdateFields))
	for _, field := range RegularTaskUpdateFields {
		assert.Contains(t, keys, field)
	}
}

func TestFilterTaskUpdateDropsDisallowedFields(t *testing.T) {
	payload := model.TaskPayload{Title: "x", Status: model.StatusCompleted}

	filtered := FilterTaskUpdate(payload, Regular)

	data, err := json.Marshal(filtered)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed"}`, string(data))
}

func TestFilterTaskUpdateLeavesAdminPayloadAlone(t *testing.T) {
	payload := fullTaskPayload()
	assert.Equal(t, payload, FilterTaskUpdate(payload, Admin))
}

func TestCanWriteTaskField(t *testing.T) {
	assert.True(t, CanWriteTaskField(Admin, "title"))
	assert.True(t, CanWriteTaskField(Regular, "status"))
	assert.True(t, CanWriteTaskField(Regular, "start_datetime"))
	assert.True(t, CanWriteTaskField(Regular, "end_datetime"))

	assert.False(t, CanWriteTaskField(Regular, "title"))
	assert.False(t, CanWriteTaskField(Regular, "priority"))
	assert.False(t, CanWriteTaskField(Regular, "due_date"))
	assert.False(t, CanWriteTaskField(Regular, "description"))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, Regular, LevelFor(nil))
	assert.Equal(t, Regular, LevelFor(&model.User{Username: "worker"}))
	assert.Equal(t, Admin, LevelFor(&model.User{Username: "boss", IsAdmin: true}))
}
