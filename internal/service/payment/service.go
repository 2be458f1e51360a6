package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
	"github.com/splax/gameportal/internal/service/notify"
	"github.com/splax/gameportal/internal/service/upload"
	"github.com/splax/gameportal/internal/validate"
)

// Uploader stores the proof attachment and removes it again when the payment
// cannot be recorded.
type Uploader interface {
	Save(ctx context.Context, f *upload.File) (domain.UploadedFile, error)
	Discard(ctx context.Context, key string) error
}

// Notifier queues an e-mail without waiting for delivery.
type Notifier interface {
	Submit(msg notify.Message) <-chan error
}

// Input is a payment form submission.
type Input struct {
	Amount    string       `form:"amount" validate:"required,amount"`
	Email     string       `form:"email" validate:"required,email,max=254"`
	CardNo    string       `form:"card" validate:"omitempty,numeric,min=12,max=19"`
	CardMonth string       `form:"month" validate:"omitempty,max=7"`
	CVV       string       `form:"cvv" validate:"omitempty,numeric,min=3,max=4"`
	Proof     *upload.File `form:"-"`
}

func (in Input) card() domain.CardDetails {
	return domain.CardDetails{Number: in.CardNo, Month: in.CardMonth, CVV: in.CVV}
}

// Service records payment proofs and notifies staff.
type Service struct {
	payments  repository.PaymentRepository
	uploads   Uploader
	tokenizer Tokenizer
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a Service. A nil tokenizer rejects submissions that carry card data.
func New(payments repository.PaymentRepository, uploads Uploader, tokenizer Tokenizer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		payments:  payments,
		uploads:   uploads,
		tokenizer: tokenizer,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates the form, tokenizes any card data, stores the proof, records the
// payment and queues the notification. A proof whose payment cannot be recorded is
// discarded. Notification failures are logged and never fail the submission.
func (s *Service) Submit(ctx context.Context, user *domain.User, in Input) (*domain.Payment, error) {
	in.Amount = strings.TrimSpace(in.Amount)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.CardNo = strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(in.CardNo), " ", ""), "-", "")
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	cents, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, domain.NewValidationError("amount", "amount must be a positive amount with at most two decimals.")
	}

	var token, last4 string
	if card := in.card(); !card.Empty() {
		if s.tokenizer == nil {
			return nil, domain.NewValidationError("card", "card payments are not available.")
		}
		token, err = s.tokenizer.Tokenize(ctx, card)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: tokenize card: %v", domain.ErrStorage, err)
		}
		last4 = card.Last4()
	}

	file, err := s.uploads.Save(ctx, in.Proof)
	if err != nil {
		return nil, err
	}

	p := &domain.Payment{
		ID:          uuid.NewString(),
		Email:       in.Email,
		AmountCents: cents,
		ProofKey:    file.Key,
		ProofURL:    file.URL,
		CardToken:   token,
		CardLast4:   last4,
		CreatedAt:   s.now().UTC(),
	}
	if user != nil {
		p.UserID = user.ID
	}

	if err := s.payments.CreatePayment(ctx, p); err != nil {
		if derr := s.uploads.Discard(context.WithoutCancel(ctx), file.Key); derr != nil {
			s.logger.Error("failed to discard orphaned proof", "key", file.Key, "error", derr)
		}
		return nil, fmt.Errorf("%w: create payment: %v", domain.ErrStorage, err)
	}
	s.logger.Info("payment submitted", "payment_id", p.ID, "user_id", p.UserID, "amount_cents", p.AmountCents, "proof_key", p.ProofKey)

	s.notify(p, FormatAmount(cents))
	return p, nil
}

func (s *Service) notify(p *domain.Payment, amount string) {
	if s.notifier == nil {
		return
	}
	msg, err := notify.PaymentMessage(p.Email, amount, p.ProofURL)
	if err != nil {
		s.logger.Error("failed to compose payment notification", "payment_id", p.ID, "error", err)
		return
	}
	result := s.notifier.Submit(msg)
	go func() {
		if err := <-result; err != nil {
			s.logger.Error("payment notification failed", "payment_id", p.ID, "error", err)
		}
	}()
}

// ParseAmount converts a decimal string such as "12.5" into cents.
func ParseAmount(value string) (int64, error) {
	whole, frac, hasFrac := strings.Cut(strings.TrimSpace(value), ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	var cents int64
	if hasFrac {
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid amount %q", value)
		}
	}
	total := units*100 + cents
	if total <= 0 || units > (1<<62)/100 {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	return total, nil
}

// FormatAmount renders cents as a decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
