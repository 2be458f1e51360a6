package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
)

const uniqueViolation = "23505"

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool DB
}

// New constructs a Repository.
func New(pool DB) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.ContactRepository    = (*Repository)(nil)
	_ repository.PaymentRepository    = (*Repository)(nil)
	_ repository.DeadLetterRepository = (*Repository)(nil)
)

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateUser inserts a user. A duplicate email surfaces as repository.ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, fname, lname, dateofbirth, email, phone, password, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.FirstName, user.LastName, user.DateOfBirth,
		user.Email, user.Phone, user.PasswordHash, user.Country, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, fname, lname, dateofbirth, email, phone, password, country, created_at
		FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, fname, lname, dateofbirth, email, phone, password, country, created_at
		FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// CreateContact inserts a contact form message.
func (r *Repository) CreateContact(ctx context.Context, msg *domain.ContactMessage) error {
	const query = `INSERT INTO contacts (id, user_id, yourname, youremail, textarea, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, msg.ID, nullable(msg.UserID), msg.Name, msg.Email, msg.Body, msg.CreatedAt)
	return err
}

// CreatePayment inserts a payment submission.
func (r *Repository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	const query = `INSERT INTO payments (id, user_id, email, amount_cents, proof_key, proof_url, card_token, card_last4, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, payment.ID, nullable(payment.UserID), payment.Email, payment.AmountCents,
		payment.ProofKey, payment.ProofURL, nullable(payment.CardToken), nullable(payment.CardLast4), payment.CreatedAt)
	return err
}

// InsertDeadLetter stores an undeliverable notification.
func (r *Repository) InsertDeadLetter(ctx context.Context, letter *domain.DeadLetter) error {
	const query = `INSERT INTO notification_dead_letters (id, recipient, subject, payload, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, letter.ID, letter.Recipient, letter.Subject, letter.Payload,
		letter.Attempts, letter.LastError, letter.CreatedAt)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.DateOfBirth, &u.Email, &u.Phone,
		&u.PasswordHash, &u.Country, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
