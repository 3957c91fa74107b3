package model

import "strings"

// User is a locally known account. At most one row is active at a time;
// rows from earlier sign-ins are kept soft-deleted.
type User struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	Name      string `json:"name" db:"name"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
	IsDeleted bool   `json:"is_deleted" db:"is_deleted"`
}

// DisplayNameFromEmail returns the local part of an e-mail address.
func DisplayNameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
