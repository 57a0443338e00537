package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kalamarcito/dav/internal/store"
)

// Service authenticates DAV clients with per-client app passwords.
type Service struct {
	store *store.Store
	log   *zap.Logger
}

func NewService(st *store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

var errInvalidCredentials = errors.New("invalid credentials")

// ValidateAppPassword verifies Basic Auth credentials for DAV clients.
// The username may be the account name or the primary email.
func (s *Service) ValidateAppPassword(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.Users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.store.Users.GetByEmail(ctx, username)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	passwords, err := s.store.AppPasswords.FindValidByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range passwords {
		if bcrypt.CompareHashAndPassword([]byte(p.TokenHash), []byte(password)) == nil {
			if err := s.store.AppPasswords.TouchLastUsed(ctx, p.ID); err != nil {
				s.log.Warn("touch app password", zap.Int64("id", p.ID), zap.Error(err))
			}
			return user, nil
		}
	}
	return nil, errInvalidCredentials
}

// RequireDAVAuth enforces Basic Auth for DAV endpoints.
func (s *Service) RequireDAVAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" || password == "" {
			w.Header().Set("WWW-Authenticate", "Basic realm=\"DAV\"")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		user, err := s.ValidateAppPassword(r.Context(), username, password)
		if err != nil {
			if !errors.Is(err, errInvalidCredentials) {
				s.log.Error("app password validation", zap.Error(err))
			}
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
