package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/repository"
)

type stubUserRepo struct {
	mu        sync.Mutex
	byEmail   map[string]*domain.User
	createErr error
	lookupErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byEmail: make(map[string]*domain.User)}
}

func (r *stubUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return repository.ErrDuplicate
	}
	r.byEmail[user.Email] = user
	return nil
}

func (r *stubUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *stubUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: "1990-12-10",
		Email:       "  Ada@Example.com ",
		Phone:       "555-0100",
		Password:    "correct horse",
		Country:     "uk",
	}
}

func TestRegisterHashesAndNormalizes(t *testing.T) {
	repo := newStubUserRepo()
	svc := New(repo, nil)

	user, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, []byte("correct horse"), user.PasswordHash)
	assert.Equal(t, time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC), user.DateOfBirth)
	assert.NotEmpty(t, user.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := New(repo, nil)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Email = "ADA@example.com"
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.Len(t, repo.byEmail, 1)
}

func TestRegisterConcurrentDuplicatesCreateOneUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := New(repo, nil)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, repo.byEmail, 1)
}

func TestRegisterValidation(t *testing.T) {
	svc := New(newStubUserRepo(), nil)

	in := validInput()
	in.Email = "not-an-email"
	in.Password = "short"
	_, err := svc.Register(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrValidation)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")

	in = validInput()
	in.DateOfBirth = time.Now().AddDate(1, 0, 0).Format(dateLayout)
	_, err = svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegisterStorageFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.createErr = errors.New("db down")
	svc := New(repo, nil)

	_, err := svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestAuthenticate(t *testing.T) {
	repo := newStubUserRepo()
	svc := New(repo, nil)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), LoginInput{Email: "ADA@example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)

	_, err = svc.Authenticate(context.Background(), LoginInput{Email: "ada@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = svc.Authenticate(context.Background(), LoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthenticateRequiresBothFields(t *testing.T) {
	repo := newStubUserRepo()
	repo.lookupErr = errors.New("must not be queried")
	svc := New(repo, nil)

	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "  ", Password: ""})
	require.ErrorIs(t, err, domain.ErrValidation)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email is required.", verr.Fields["email"])
	assert.Equal(t, "password is required.", verr.Fields["password"])
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.Authenticate(context.Background(), LoginInput{Email: "ada@example.com"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthenticateStorageFailure(t *testing.T) {
	repo := newStubUserRepo()
	repo.lookupErr = errors.New("db down")
	svc := New(repo, nil)

	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "ada@example.com", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)
}
