package policy

import "github.com/aroranishank/tms-frontend/internal/model"

// Level is the caller's access level for write operations.
type Level int

const (
	Regular Level = iota
	Admin
)

func LevelFor(user *model.User) Level {
	if user != nil && user.IsAdmin {
		return Admin
	}
	return Regular
}

// RegularTaskUpdateFields is the one authoritative list of task fields a
// regular user may write on update, named by wire key. Admins may write any
// field. No call site carries its own copy of this list.
var RegularTaskUpdateFields = []string{"status", "start_datetime", "end_datetime"}

var regularTaskUpdateSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(RegularTaskUpdateFields))
	for _, field := range RegularTaskUpdateFields {
		set[field] = struct{}{}
	}
	return set
}()

// CanWriteTaskField reports whether the level may write the given task field
// on update.
func CanWriteTaskField(level Level, field string) bool {
	if level == Admin {
		return true
	}
	_, ok := regularTaskUpdateSet[field]
	return ok
}

// FilterTaskUpdate strips every field outside the level's allowance from an
// update payload, so disallowed writes never reach the wire even when the
// caller set them.
func FilterTaskUpdate(payload model.TaskPayload, level Level) model.TaskPayload {
	if level == Admin {
		return payload
	}
	return model.TaskPayload{
		Status:        payload.Status,
		StartDatetime: payload.StartDatetime,
		EndDatetime:   payload.EndDatetime,
	}
}
