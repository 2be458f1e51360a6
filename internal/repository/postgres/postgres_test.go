package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
)

var userColumns = []string{"id", "fname", "lname", "dateofbirth", "email", "phone", "password", "country", "created_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "user-1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DateOfBirth:  time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC),
		Email:        "ada@example.com",
		Phone:        "555-0100",
		PasswordHash: []byte("$2a$10$hash"),
		Country:      "uk",
		CreatedAt:    time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCreateUserInserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUser()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.FirstName, u.LastName, u.DateOfBirth, u.Email, u.Phone, u.PasswordHash, u.Country, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateUser(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.CreateUser(context.Background(), sampleUser())
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserPassesThroughOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)

	err := repo.CreateUser(context.Background(), sampleUser())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetUserByEmailScansRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUser()

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs(u.Email).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(u.ID, u.FirstName, u.LastName, u.DateOfBirth, u.Email, u.Phone, u.PasswordHash, u.Country, u.CreatedAt))

	got, err := repo.GetUserByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestGetUserByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreatePaymentStoresReferenceOnly(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := &domain.Payment{
		ID:          "pay-1",
		UserID:      "user-1",
		Email:       "ada@example.com",
		AmountCents: 1250,
		ProofKey:    "123-abc.png",
		ProofURL:    "http://localhost:3000/uploads/123-abc.png",
		CardToken:   "tok_1",
		CardLast4:   "4242",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(p.ID, pgxmock.AnyArg(), p.Email, p.AmountCents, p.ProofKey, p.ProofURL,
			pgxmock.AnyArg(), pgxmock.AnyArg(), p.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreatePayment(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateContactAndDeadLetter(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs("msg-1", pgxmock.AnyArg(), "Ada", "ada@example.com", "hello", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO notification_dead_letters`).
		WithArgs("dl-1", "ada@example.com", "New Payment Submitted", "<p>x</p>", 4, "smtp down", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateContact(context.Background(), &domain.ContactMessage{
		ID: "msg-1", UserID: "user-1", Name: "Ada", Email: "ada@example.com", Body: "hello", CreatedAt: now,
	}))
	require.NoError(t, repo.InsertDeadLetter(context.Background(), &domain.DeadLetter{
		ID: "dl-1", Recipient: "ada@example.com", Subject: "New Payment Submitted", Payload: "<p>x</p>",
		Attempts: 4, LastError: "smtp down", CreatedAt: now,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}
