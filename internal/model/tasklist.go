package model

// TaskList is a named collection of tasks owned by a user (by email).
type TaskList struct {
	ID        string  `json:"id" db:"id"`
	Email     string  `json:"email" db:"email"`
	Name      string  `json:"name" db:"name"`
	CreatedAt int64   `json:"created_at" db:"created_at"`
	UpdatedAt int64   `json:"updated_at" db:"updated_at"`
	IsDeleted bool    `json:"is_deleted" db:"is_deleted"`
	ServerID  *string `json:"server_id,omitempty" db:"server_id"`
	NeedsSync bool    `json:"needs_sync" db:"needs_sync"`

	// Tasks is populated by tree queries only.
	Tasks []Task `json:"tasks,omitempty" db:"-"`
}

// HasServerID reports whether the list has been acknowledged by the server.
func (l TaskList) HasServerID() bool {
	return l.ServerID != nil && *l.ServerID != ""
}
