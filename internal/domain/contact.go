package domain

import "time"

// ContactMessage is a message left through the contact form.
type ContactMessage struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Body      string
	CreatedAt time.Time
}
