// Package guard decides whether a client view may be shown for the
// current session. The three guard variants share one interface so the
// loading/redirect handling is written once.
package guard

import "github.com/shoplite/apiserver/internal/client/session"

// Decision is the tri-state outcome of a guard check.
type Decision int

const (
	// Allow renders the requested view.
	Allow Decision = iota
	// RedirectLogin sends the caller to the login view.
	RedirectLogin
	// RedirectHome sends the caller to the default landing view.
	RedirectHome
)

// Guard decides whether to render a view for the given session.
// A nil session means unauthenticated.
type Guard interface {
	Decide(sess *session.Session) Decision
}

// Protected admits authenticated users only.
type Protected struct{}

func (Protected) Decide(sess *session.Session) Decision {
	if !sess.IsAuthenticated() {
		return RedirectLogin
	}
	return Allow
}

// Public admits unauthenticated users only; signed-in users are sent
// back to the landing view so they cannot revisit login/register.
type Public struct{}

func (Public) Decide(sess *session.Session) Decision {
	if sess.IsAuthenticated() {
		return RedirectHome
	}
	return Allow
}

// Admin admits authenticated admins; authenticated non-admins go to
// the landing view, everyone else to login.
type Admin struct{}

func (Admin) Decide(sess *session.Session) Decision {
	if !sess.IsAuthenticated() {
		return RedirectLogin
	}
	if !sess.IsAdmin() {
		return RedirectHome
	}
	return Allow
}
