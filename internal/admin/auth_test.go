package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"regnotify/pkg/sentinel"
)

type AuthServiceSuite struct {
	suite.Suite
	users *InMemoryUserStore
	auth  *AuthService
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.users = NewInMemoryUserStore()
	s.auth = NewAuthService(s.users, "test-signing-key", time.Hour)
	s.Require().NoError(SeedDefault(context.Background(), s.users, "admin", "changeme"))
}

func (s *AuthServiceSuite) TestLoginAndValidate() {
	ctx := context.Background()

	token, err := s.auth.Login(ctx, "admin", "changeme")
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.auth.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal("admin", claims.Username)
	s.Equal("admin", claims.Role)
	s.NotEmpty(claims.SessionID)
}

func (s *AuthServiceSuite) TestLoginRejectsBadCredentials() {
	ctx := context.Background()

	_, err := s.auth.Login(ctx, "admin", "wrong")
	s.ErrorIs(err, sentinel.ErrUnauthorized)

	_, err = s.auth.Login(ctx, "nobody", "changeme")
	s.ErrorIs(err, sentinel.ErrUnauthorized, "unknown user and bad password are indistinguishable")
}

func (s *AuthServiceSuite) TestValidateRejectsTamperedToken() {
	other := NewAuthService(s.users, "different-key", time.Hour)

	token, err := other.Login(context.Background(), "admin", "changeme")
	s.Require().NoError(err)

	_, err = s.auth.ValidateToken(token)
	s.ErrorIs(err, sentinel.ErrUnauthorized)
}

func (s *AuthServiceSuite) TestLogoutRevokesSession() {
	ctx := context.Background()

	token, err := s.auth.Login(ctx, "admin", "changeme")
	s.Require().NoError(err)

	claims, err := s.auth.ValidateToken(token)
	s.Require().NoError(err)

	s.Require().NoError(s.auth.Logout(ctx, claims.SessionID))

	_, err = s.auth.ValidateToken(token)
	s.ErrorIs(err, sentinel.ErrUnauthorized, "a revoked session must not validate")

	// A fresh login works immediately after.
	_, err = s.auth.Login(ctx, "admin", "changeme")
	s.NoError(err)
}

func (s *AuthServiceSuite) TestSeedDefaultIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(SeedDefault(ctx, s.users, "admin", "other-password"))

	// The original password still works; the seed did not overwrite it.
	_, err := s.auth.Login(ctx, "admin", "changeme")
	s.NoError(err)
}
