package domain

import "time"

// DeadLetter is a notification that could not be delivered after all retries.
type DeadLetter struct {
	ID        string
	Recipient string
	Subject   string
	Payload   string
	Attempts  int
	LastError string
	CreatedAt time.Time
}
