package staff

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Bobtechma/schonheitslokal2/libs/db"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, m Member) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, email, name, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.Email, m.Name, m.PasswordHash, m.Role, m.Active, m.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Member, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Member, error) {
	return r.get(ctx, `WHERE id::text = $1`, id)
}

func (r *Repository) get(ctx context.Context, where string, arg string) (Member, error) {
	var m Member
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, name, password_hash, role, active, created_at
		FROM staff
		`+where, arg).Scan(&m.ID, &m.Email, &m.Name, &m.PasswordHash, &m.Role, &m.Active, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, email, name, password_hash, role, active, created_at
		FROM staff
		ORDER BY created_at, email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Email, &m.Name, &m.PasswordHash, &m.Role, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes the member. Their refresh tokens go with them through the
// foreign key.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM staff WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Memory is the directory used without a database.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]Member
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{byID: map[string]Member{}, byEmail: map[string]string{}}
}

func (m *Memory) Create(_ context.Context, member Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[member.Email]; ok {
		return ErrEmailTaken
	}
	m.byID[member.ID] = member
	m.byEmail[member.Email] = member.ID
	return nil
}

func (m *Memory) GetByEmail(_ context.Context, email string) (Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) GetByID(_ context.Context, id string) (Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.byID[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byEmail, member.Email)
	return nil
}

func (m *Memory) List(_ context.Context) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Member, 0, len(m.byID))
	for _, member := range m.byID {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

var (
	_ Directory = (*Repository)(nil)
	_ Directory = (*Memory)(nil)
)
