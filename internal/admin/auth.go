// Package admin authenticates console operators. Sessions are stateless JWTs
// carried in a cookie; logout puts the session id on a revocation list.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"regnotify/internal/platform/middleware"
	platformredis "regnotify/internal/platform/redis"
	"regnotify/pkg/sentinel"
)

// RevocationList tracks logged-out session ids until their tokens expire.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) bool
}

// AuthService issues and validates session tokens.
type AuthService struct {
	users      UserStore
	signingKey []byte
	ttl        time.Duration
	revoked    RevocationList
	logger     *slog.Logger
}

type AuthOption func(*AuthService)

func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) { s.logger = logger.With("component", "auth") }
}

func WithRevocationList(list RevocationList) AuthOption {
	return func(s *AuthService) { s.revoked = list }
}

func NewAuthService(users UserStore, signingKey string, ttl time.Duration, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		revoked:    NewInMemoryRevocationList(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sessionClaims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Login verifies the credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", sentinel.ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", sentinel.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", sentinel.ErrUnauthorized
	}

	now := time.Now()
	claims := sessionClaims{
		Username:  user.Username,
		Role:      user.Role,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin logged in",
		"username", user.Username, "session_id", claims.SessionID)
	return token, nil
}

// Logout revokes the session for the remainder of its lifetime.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.revoked.Revoke(ctx, sessionID, s.ttl)
}

// SessionTTL is the cookie lifetime matching the token's expiry.
func (s *AuthService) SessionTTL() time.Duration { return s.ttl }

// ValidateToken implements middleware.SessionValidator.
func (s *AuthService) ValidateToken(tokenString string) (*middleware.SessionClaims, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, sentinel.ErrUnauthorized
	}
	if s.revoked.IsRevoked(context.Background(), claims.SessionID) {
		return nil, sentinel.ErrUnauthorized
	}

	return &middleware.SessionClaims{
		UserID:    claims.Subject,
		Username:  claims.Username,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// RedisRevocationList keys revoked session ids with the token's remaining
// lifetime so entries expire on their own.
type RedisRevocationList struct {
	client *platformredis.Client
}

func NewRedisRevocationList(client *platformredis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func revocationKey(sessionID string) string {
	return "regnotify:revoked:" + sessionID
}

func (l *RedisRevocationList) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	return l.client.Set(ctx, revocationKey(sessionID), "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, sessionID string) bool {
	n, err := l.client.Exists(ctx, revocationKey(sessionID)).Result()
	// Fail closed on the session check would lock everyone out on a Redis
	// blip; fail open and rely on token expiry instead.
	return err == nil && n > 0
}

// InMemoryRevocationList is the single-node fallback when Redis is absent.
type InMemoryRevocationList struct {
	mu      sync.Mutex
	expires map[string]time.Time
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{expires: make(map[string]time.Time)}
}

func (l *InMemoryRevocationList) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires[sessionID] = time.Now().Add(ttl)
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.expires[sessionID]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(l.expires, sessionID)
		return false
	}
	return true
}
