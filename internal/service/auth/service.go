package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
	"github.com/splax/gameportal/internal/validate"
	"github.com/splax/gameportal/pkg/crypto"
)

const dateLayout = "2006-01-02"

// Service handles registration and credential checks.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, logger: logger, now: time.Now}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName   string `form:"fullname" validate:"required,max=100"`
	LastName    string `form:"lastname" validate:"required,max=100"`
	DateOfBirth string `form:"dob" validate:"required,datetime=2006-01-02"`
	Email       string `form:"email" validate:"required,email,max=254"`
	Phone       string `form:"phone" validate:"required,max=32"`
	Password    string `form:"password" validate:"required,min=8,max=72"`
	Country     string `form:"role" validate:"required,max=64"`
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates input and creates the account. A taken email yields
// domain.ErrDuplicateEmail and leaves the store unchanged.
func (s Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Country = strings.TrimSpace(in.Country)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	dob, err := time.Parse(dateLayout, in.DateOfBirth)
	if err != nil {
		return nil, domain.NewValidationError("dob", "dob must be a date in the form YYYY-MM-DD.")
	}
	if dob.After(s.now()) {
		return nil, domain.NewValidationError("dob", "dob cannot be in the future.")
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  dob,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Country:      in.Country,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Info("registration rejected, email taken")
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: create user: %v", domain.ErrStorage, err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `form:"email" validate:"required,max=254"`
	Password string `form:"password" validate:"required,max=72"`
}

// Authenticate checks an email/password pair. Empty fields yield a *domain.ValidationError,
// a missing user domain.ErrUserNotFound and a wrong password domain.ErrInvalidCredential.
func (s Service) Authenticate(ctx context.Context, in LoginInput) (*domain.User, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	password := in.Password
	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			crypto.BurnComparison(password)
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: lookup user: %v", domain.ErrStorage, err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Info("login rejected", "user_id", user.ID)
		return nil, domain.ErrInvalidCredential
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, nil
}
