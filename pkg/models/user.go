// Package models defines the domain entities shared by the store, the action
// engine, and the API surface.
package models

// User is an account that owns threads and actions.
type User struct {
	ID              int64  `db:"id" json:"id"`
	IsActive        bool   `db:"is_active" json:"is_active"`
	Email           string `db:"email" json:"email"`
	PasswordVersion int    `db:"password_version" json:"password_version"`
	PasswordHash    string `db:"password_hash" json:"-"`
}
