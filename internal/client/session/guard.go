// Package session implements the session guard: it decodes the bearer
// credential, decides validity, schedules forced sign-out at expiry and
// re-validates on resume. The guard never surfaces session invalidity as an
// error to call sites; it always resolves it through the sign-out path.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/storage/credentials"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/sched"
)

// tokenClaims is the wire shape of the claims segment.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Decode extracts the claims from a bearer token without verifying the
// signature; the issuer remains the authority, the client only reads expiry
// and role. It fails soft: any malformed structure, encoding or JSON yields
// (nil, false) rather than an error.
func Decode(token string) (*models.Claims, bool) {
	if token == "" {
		return nil, false
	}
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return nil, false
	}
	claims := &models.Claims{Sub: tc.Subject, Role: tc.Role}
	if tc.ExpiresAt != nil {
		claims.Exp = tc.ExpiresAt.Unix()
	}
	return claims, true
}

// Guard owns the expiry timer and the periodic liveness recheck for one
// session. Both timers can trigger sign-out; whichever fires first wins and
// sign-out is idempotent, so double-firing is safe.
type Guard struct {
	store     credentials.Repository
	scheduler *sched.Scheduler
	log       logging.Logger

	livenessInterval time.Duration
	onSignOut        func()

	mu             sync.Mutex
	expiryHandle   *sched.Handle
	livenessHandle *sched.Handle
	signedOut      bool
}

// NewGuard constructs a guard. onSignOut runs at most once per scheduled
// session and is invoked after the stored credential has been cleared.
func NewGuard(store credentials.Repository, scheduler *sched.Scheduler, livenessInterval time.Duration, log logging.Logger, onSignOut func()) *Guard {
	return &Guard{
		store:            store,
		scheduler:        scheduler,
		log:              log,
		livenessInterval: livenessInterval,
		onSignOut:        onSignOut,
	}
}

// IsValid reports whether the token is structurally valid and unexpired.
// Null/empty tokens and tokens without an exp claim are invalid.
func (g *Guard) IsValid(token string) bool {
	claims, ok := Decode(token)
	if !ok || claims.Exp == 0 {
		return false
	}
	return g.scheduler.Clock().Now().UnixMilli() < claims.Exp*1000
}

// SessionFromToken derives the full session record from the token.
func (g *Guard) SessionFromToken(token string) (*models.Session, bool) {
	claims, ok := Decode(token)
	if !ok {
		return nil, false
	}
	return &models.Session{
		Token:     token,
		Claims:    *claims,
		ExpiresAt: time.UnixMilli(claims.Exp * 1000),
	}, true
}

// ScheduleExpiry arms a single-shot timer for the remaining lifetime of the
// token and an independent periodic liveness recheck that re-reads storage.
// An already-expired token triggers immediate forced sign-out. Any timers
// from a previous session are replaced.
func (g *Guard) ScheduleExpiry(ctx context.Context, token string) {
	g.mu.Lock()
	g.stopTimersLocked()
	g.signedOut = false
	g.mu.Unlock()

	claims, ok := Decode(token)
	if !ok || claims.Exp == 0 {
		g.SignOut(ctx, "invalid token")
		return
	}

	msLeft := claims.Exp*1000 - g.scheduler.Clock().Now().UnixMilli()
	if msLeft <= 0 {
		g.SignOut(ctx, "token already expired")
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.expiryHandle = g.scheduler.After(time.Duration(msLeft)*time.Millisecond, func() {
		g.SignOut(context.Background(), "token expired")
	})
	g.livenessHandle = g.scheduler.Every(g.livenessInterval, g.recheck)
	g.log.Debug(ctx, "session expiry scheduled", "ms_left", msLeft, "sub", claims.Sub)
}

// recheck covers clock skew and externally-cleared tokens: a suspended timer
// is not trusted to have fired correctly, so storage is re-read every tick.
func (g *Guard) recheck() {
	ctx := context.Background()
	token, err := g.store.Get(ctx, credentials.TokenKey)
	if err != nil || !g.IsValid(token) {
		g.SignOut(ctx, "liveness check failed")
	}
}

// Revalidate handles resume events: it re-reads the stored credential and
// forces sign-out when it is missing or invalid. It reports whether the
// session is still live.
func (g *Guard) Revalidate(ctx context.Context) bool {
	token, err := g.store.Get(ctx, credentials.TokenKey)
	if err != nil || !g.IsValid(token) {
		g.SignOut(ctx, "revalidation failed")
		return false
	}
	return true
}

// SignOut clears the stored credential, cancels the guard timers and invokes
// the sign-out callback. It is idempotent: clearing an already-cleared
// session does nothing.
func (g *Guard) SignOut(ctx context.Context, reason string) {
	g.mu.Lock()
	if g.signedOut {
		g.mu.Unlock()
		return
	}
	g.signedOut = true
	g.stopTimersLocked()
	g.mu.Unlock()

	if err := g.store.Delete(ctx, credentials.TokenKey); err != nil {
		g.log.Warn(ctx, "failed to clear stored credential", "error", err)
	}
	g.log.Info(ctx, "signed out", "reason", reason)
	if g.onSignOut != nil {
		g.onSignOut()
	}
}

// Teardown cancels the guard timers without signing the session out. Used
// when the owning view goes away but the session itself stays valid.
func (g *Guard) Teardown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopTimersLocked()
}

func (g *Guard) stopTimersLocked() {
	if g.expiryHandle != nil {
		g.expiryHandle.Stop()
		g.expiryHandle = nil
	}
	if g.livenessHandle != nil {
		g.livenessHandle.Stop()
		g.livenessHandle = nil
	}
}
