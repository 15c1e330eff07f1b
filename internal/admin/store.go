package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"regnotify/pkg/sentinel"
)

// User is a console operator account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// UserStore persists console accounts.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username, passwordHash, role string) error
}

// SeedDefault creates the built-in admin account when the store is empty so a
// fresh deployment has a way in. The password must be changed afterwards.
func SeedDefault(ctx context.Context, store UserStore, username, password string) error {
	if _, err := store.FindByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	return store.Create(ctx, username, string(hash), "admin")
}

// PostgresUserStore backs UserStore with the admin_users table.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `SELECT id, username, password_hash, role, is_active, created_at
		FROM admin_users WHERE username = $1`, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find admin user: %w", err)
	}
	return &user, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, username, passwordHash, role string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO admin_users (username, password_hash, role)
		VALUES ($1, $2, $3)`, username, passwordHash, role)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	return nil
}

// InMemoryUserStore implements UserStore for unit tests.
type InMemoryUserStore struct {
	mu     sync.Mutex
	users  map[string]*User
	nextID int64
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*User)}
}

func (s *InMemoryUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *InMemoryUserStore) Create(_ context.Context, username, passwordHash, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return sentinel.ErrConflict
	}
	s.nextID++
	s.users[username] = &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	return nil
}
