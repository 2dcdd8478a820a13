package schema

import "time"

// User represents an account that can sign in and edit the board.
// The password hash never leaves the server; the JSON tag strips it
// from every API response.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRef is the trimmed-down user shape embedded in API responses
// (assignee, creator) where the full record is not needed.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ref returns the embeddable reference for a user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
