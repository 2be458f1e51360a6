package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
	"github.com/splax/gameportal/internal/validate"
)

// Input is the contact form.
type Input struct {
	Name  string `form:"yourname" validate:"required,max=100"`
	Email string `form:"youremail" validate:"required,email,max=254"`
	Body  string `form:"textarea" validate:"required,max=5000"`
}

// Service stores contact messages.
type Service struct {
	repo   repository.ContactRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(repo repository.ContactRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Submit validates and persists a message from the signed-in user.
func (s *Service) Submit(ctx context.Context, userID string, in Input) (*domain.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Body = strings.TrimSpace(in.Body)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	msg := &domain.ContactMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Email:     in.Email,
		Body:      in.Body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateContact(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: create contact: %v", domain.ErrStorage, err)
	}
	s.logger.Info("contact message stored", "message_id", msg.ID, "user_id", userID)
	return msg, nil
}
