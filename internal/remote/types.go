package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Flag is a boolean that also decodes from 0/1 and null, since the server
// stores flags in columns of varying type.
type Flag bool

// UnmarshalJSON accepts true, false, 0, 1 and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1", `"1"`, `"true"`:
		*f = true
	case "false", "0", "null", `"0"`, `"false"`, "":
		*f = false
	default:
		return fmt.Errorf("decoding flag from %s", data)
	}
	return nil
}

// ID is a remote identifier that decodes from a JSON string or number.
type ID string

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id from %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// Millis is an epoch-milliseconds timestamp that decodes from a number, a
// numeric string or null.
type Millis int64

// UnmarshalJSON accepts a number, a numeric string or null.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*m = 0
		return nil
	}
	raw := string(bytes.Trim(data, `"`))
	if raw == "" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decoding timestamp from %s: %w", data, err)
	}
	*m = Millis(n)
	return nil
}

// Ptr returns nil for the zero timestamp.
func (m *Millis) Ptr() *int64 {
	if m == nil || *m == 0 {
		return nil
	}
	v := int64(*m)
	return &v
}

// SignInRequest is the body of POST /signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse is the reply of POST /signin.
type SignInResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// SignUpRequest is the body of POST /signup.
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListPayload is the body of POST/PUT /task_lists.
type ListPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// TaskPayload is the body of POST/PUT /tasks. ListID is the parent's
// remote id.
type TaskPayload struct {
	ID          string `json:"id"`
	ListID      string `json:"list_id"`
	Name        string `json:"name"`
	Date        int64  `json:"date"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// SubtaskPayload is the body of POST/PUT /subtasks. TaskID is the parent's
// remote id.
type SubtaskPayload struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	Name        string `json:"name"`
	Date        *int64 `json:"date"`
	IsCompleted bool   `json:"is_completed"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// WriteResponse is the reply to every create or update: the id to store as
// server_id.
type WriteResponse struct {
	ID ID `json:"id"`
}

// RemoteList is a task list as returned by GET /sync.
type RemoteList struct {
	ID        ID     `json:"id"`
	LocalID   string `json:"local_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name"`
	CreatedAt Millis `json:"created_at"`
	UpdatedAt Millis `json:"updated_at"`
	IsDeleted Flag   `json:"is_deleted"`
}

// RemoteTask is a task as returned by GET /sync. ListID is the parent's
// remote id.
type RemoteTask struct {
	ID          ID     `json:"id"`
	LocalID     string `json:"local_id,omitempty"`
	ListID      ID     `json:"list_id"`
	Name        string `json:"name"`
	Date        Millis `json:"date"`
	IsCompleted Flag   `json:"is_completed"`
	IsExpanded  Flag   `json:"is_expanded"`
	CreatedAt   Millis `json:"created_at"`
	UpdatedAt   Millis `json:"updated_at"`
	IsDeleted   Flag   `json:"is_deleted"`
}

// RemoteSubtask is a subtask as returned by GET /sync. TaskID is the
// parent's remote id.
type RemoteSubtask struct {
	ID          ID     `json:"id"`
	LocalID     string `json:"local_id,omitempty"`
	TaskID      ID     `json:"task_id"`
	Name        string `json:"name"`
	Date        Millis `json:"date"`
	IsCompleted Flag   `json:"is_completed"`
	CreatedAt   Millis `json:"created_at"`
	UpdatedAt   Millis `json:"updated_at"`
	IsDeleted   Flag   `json:"is_deleted"`
}

// Changes is the reply of GET /sync: every row changed after the checkpoint.
type Changes struct {
	TaskLists []RemoteList    `json:"task_lists"`
	Tasks     []RemoteTask    `json:"tasks"`
	Subtasks  []RemoteSubtask `json:"subtasks"`
}

// errorResponse is the body the server sends with a failure status.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
