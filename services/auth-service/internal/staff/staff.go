// Package staff holds the salon team members who may sign in to the admin
// area.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("staff member not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Member struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Directory is implemented by the Postgres repository and the in-memory
// directory.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (Member, error)
	GetByID(ctx context.Context, id string) (Member, error)
	Create(ctx context.Context, m Member) error
	List(ctx context.Context) ([]Member, error)
	Delete(ctx context.Context, id string) error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidRole(role string) bool {
	return role == auth.RoleOwner || role == auth.RoleAdmin
}

const MinPasswordLength = 10

func HashPassword(raw string) (string, error) {
	if len(raw) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

// dummyHash is compared against when the email is unknown so that a failed
// login takes about as long either way.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("schonheitslokal-dummy-password"), bcrypt.DefaultCost)

// Authenticate returns the active member with the given credentials.
func Authenticate(ctx context.Context, dir Directory, email, password string) (Member, error) {
	m, err := dir.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, err
	}
	if err := VerifyPassword(m.PasswordHash, password); err != nil || !m.Active {
		return Member{}, ErrNotFound
	}
	return m, nil
}

// NewMember validates input and hashes the password.
func NewMember(email, name, role, password string) (Member, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Member{}, errors.New("invalid email")
	}
	if !ValidRole(role) {
		return Member{}, fmt.Errorf("invalid role %q", role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Member{}, err
	}
	return Member{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// EnsureOwner creates the first owner account if no member with that email
// exists yet. It reports whether an account was created.
func EnsureOwner(ctx context.Context, dir Directory, email, password string) (bool, error) {
	if _, err := dir.GetByEmail(ctx, NormalizeEmail(email)); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	m, err := NewMember(email, "Owner", auth.RoleOwner, password)
	if err != nil {
		return false, err
	}
	if err := dir.Create(ctx, m); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
