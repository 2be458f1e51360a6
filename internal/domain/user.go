package domain

import "time"

// User represents a registered portal account.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	Email        string
	Phone        string
	PasswordHash []byte
	Country      string
	CreatedAt    time.Time
}
