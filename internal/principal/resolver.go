// Package principal resolves sharee hrefs to principal URIs against the
// user directory.
package principal

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kalamarcito/dav/internal/store"
)

// Resolver maps mailto: and principal-path hrefs to canonical principal
// URIs. It satisfies sharing.PrincipalResolver: the outcome is either a
// principal or "unresolved", never an error.
type Resolver struct {
	users store.UserRepository
	log   *zap.Logger
}

func NewResolver(users store.UserRepository, log *zap.Logger) *Resolver {
	return &Resolver{users: users, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, href string) (string, bool) {
	var (
		user *store.User
		err  error
	)
	switch {
	case strings.HasPrefix(href, "mailto:"):
		user, err = r.users.GetByEmail(ctx, strings.TrimPrefix(href, "mailto:"))
	case strings.Contains(href, "principals/users/"):
		_, username, _ := strings.Cut(href, "principals/users/")
		user, err = r.users.GetByUsername(ctx, strings.Trim(username, "/"))
	default:
		return "", false
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("principal lookup failed", zap.String("href", href), zap.Error(err))
		}
		return "", false
	}
	return user.PrincipalURI(), true
}
