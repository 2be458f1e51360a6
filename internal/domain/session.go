package domain

import "time"

// Identity is the minimal user reference kept in the session store.
type Identity struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}
