package session

import (
	"context"
	"time"

	"github.com/aroranishank/tms-frontend/internal/api"
	"github.com/aroranishank/tms-frontend/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Authenticator is the slice of the API client the session store needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (model.AuthToken, error)
	Me(ctx context.Context) (model.User, error)
}

// Store owns the current session: login, logout, and startup restore. No
// other component mutates the {token, user} pair.
type Store struct {
	cache *Cache
	auth  Authenticator
	log   zerolog.Logger
}

func NewStore(cache *Cache, auth Authenticator, log zerolog.Logger) *Store {
	return &Store{cache: cache, auth: auth, log: log}
}

// Login exchanges credentials for a token, then fetches the canonical user
// record. Nothing is persisted unless both calls succeed.
func (s *Store) Login(ctx context.Context, username, password string) (model.User, error) {
	previous := s.cache.Token()

	token, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return model.User{}, err
	}

	s.cache.Stage(token.AccessToken)
	user, err := s.auth.Me(ctx)
	if err != nil {
		s.cache.Stage(previous)
		return model.User{}, err
	}

	if err := s.cache.Save(ctx, token.AccessToken, &user); err != nil {
		return model.User{}, err
	}

	s.log.Info().Str("username", user.Username).Bool("is_admin", user.IsAdmin).Msg("logged in")
	return user, nil
}

// Logout clears the persisted session; calling it while logged out is a
// no-op.
func (s *Store) Logout(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// Restore brings back the persisted session at startup and returns nil when
// no usable session exists. A stored user that predates the is_admin field
// is refreshed from the server best-effort: the cached copy still wins when
// the refresh fails for anything but an auth error.
func (s *Store) Restore(ctx context.Context) *model.User {
	token, user := s.cache.Current()
	if token == "" {
		return nil
	}

	if tokenExpired(token, time.Now()) {
		s.log.Info().Msg("stored token is expired, starting logged out")
		_ = s.cache.Clear(ctx)
		return nil
	}

	if user != nil && s.cache.AdminKnown() {
		return user
	}

	fresh, err := s.auth.Me(ctx)
	if err != nil {
		if api.IsAuthError(err) {
			_ = s.cache.Clear(ctx)
			return nil
		}
		s.log.Warn().Err(err).Msg("could not refresh stored user")
		return user
	}

	if err := s.cache.Save(ctx, token, &fresh); err != nil {
		s.log.Warn().Err(err).Msg("could not persist refreshed user")
	}
	return &fresh
}

func (s *Store) Current() *model.User {
	_, user := s.cache.Current()
	return user
}

func (s *Store) Token() string {
	return s.cache.Token()
}

// tokenExpired decodes the token without verifying it; signature checks are
// the server's job. Opaque non-JWT tokens are never treated as expired.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
