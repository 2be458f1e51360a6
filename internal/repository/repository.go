package repository

import (
	"context"

	"github.com/splax/gameportal/internal/domain"
)

// UserRepository persists users. Email uniqueness is enforced by the store;
// CreateUser returns ErrDuplicate when it is violated.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ContactRepository stores contact form messages.
type ContactRepository interface {
	CreateContact(ctx context.Context, msg *domain.ContactMessage) error
}

// PaymentRepository stores payment submissions.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
}

// DeadLetterRepository keeps notifications that exhausted their retries.
type DeadLetterRepository interface {
	InsertDeadLetter(ctx context.Context, letter *domain.DeadLetter) error
}
