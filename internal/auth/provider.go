// Package auth implements session-cookie authentication for the admin
// authoring area.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/inkpress-dev/inkpress/internal/store"
	"github.com/inkpress-dev/inkpress/pkg/session"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when login fails. The same error
// covers unknown email and wrong password so callers can't probe for
// accounts.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// sessionContextKey keys the validated session in a request context.
type sessionContextKey struct{}

// dummyHash is a valid bcrypt hash compared against when the account
// doesn't exist, keeping login latency uniform.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Provider validates session cookies and performs login/logout against
// the user table.
type Provider struct {
	sessions   session.Store
	users      *store.Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithCookieName sets the session cookie name. Default "inkpress_session".
func WithCookieName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.cookieName = name
		}
	}
}

// WithTTL sets the session lifetime. Default 24h.
func WithTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithSecureCookies marks cookies Secure. Enable when serving over TLS
// or behind a TLS-terminating proxy.
func WithSecureCookies(secure bool) Option {
	return func(p *Provider) {
		p.secure = secure
	}
}

// New creates an auth provider over the given session and user stores.
func New(sessions session.Store, users *store.Store, opts ...Option) *Provider {
	p := &Provider{
		sessions:   sessions,
		users:      users,
		cookieName: "inkpress_session",
		ttl:        24 * time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Login verifies credentials and establishes a session. The caller is
// responsible for setting the cookie via SetCookie.
func (p *Provider) Login(ctx context.Context, email, password string) (*session.Session, error) {
	u, err := p.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so missing accounts aren't
			// distinguishable by latency.
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	sess := &session.Session{
		ID:        session.NewID(),
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}
	if err := p.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout destroys the session behind the request's cookie, if any.
func (p *Provider) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(p.cookieName); err == nil && cookie.Value != "" {
		p.sessions.Delete(r.Context(), cookie.Value)
	}
	p.ClearCookie(w)
}

// SetCookie writes the session cookie for sess.
func (p *Provider) SetCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (p *Provider) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware validates the session cookie and injects the session into
// the request context. Requests without a valid session pass through
// unauthenticated; use RequireUser to gate routes.
func (p *Provider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(p.cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := p.sessions.Load(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				p.ClearCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser gates a route on a valid session, redirecting to the login
// page otherwise.
func (p *Provider) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates a route on an admin-role session. Non-admin users
// get a 403; anonymous requests are redirected to login.
func (p *Provider) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		if sess.Role != store.RoleAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext extracts the validated session from a request
// context processed by Middleware.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok
}
