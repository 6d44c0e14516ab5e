package api

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/logger"
)

const (
	sessionName = "brixfix_session"
	sessionKey  = "session"
	emailKey    = "email"
)

// SessionContext is the per-request dashboard session. It is loaded from
// the cookie by loadSession and handed to each page handler.
type SessionContext struct {
	Email    string
	LoggedIn bool
	Flash    []string

	session *sessions.Session
}

// newCookieStore returns a signed and encrypted cookie store keyed from
// the configured session secret.
func newCookieStore(sec *conf.SecuritySettings) *sessions.CookieStore {
	authKey := sha256.Sum256([]byte(sec.SessionSecret))
	encKey := sha256.Sum256([]byte("encryption:" + sec.SessionSecret))

	store := sessions.NewCookieStore(authKey[:], encKey[:])
	store.Options = buildSessionOptions(sec)
	return store
}

func buildSessionOptions(sec *conf.SecuritySettings) *sessions.Options {
	maxAge := sec.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   sec.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// loadSession reads the session cookie. A cookie that fails to decode,
// e.g. after a secret rotation, yields a fresh anonymous session.
func (c *Controller) loadSession(ctx echo.Context) *SessionContext {
	if sc, ok := ctx.Get(sessionKey).(*SessionContext); ok {
		return sc
	}

	sess, err := c.sessions.Get(ctx.Request(), sessionName)
	if err != nil {
		GetLogger().Debug("discarding undecodable session cookie", logger.Error(err))
	}
	if sess == nil {
		sess = sessions.NewSession(c.sessions, sessionName)
	}
	if sess.Options == nil {
		sess.Options = buildSessionOptions(&c.Settings.Security)
	}

	sc := &SessionContext{session: sess}
	if email, ok := sess.Values[emailKey].(string); ok && email != "" {
		sc.Email = email
		sc.LoggedIn = true
	}
	for _, f := range sess.Flashes() {
		if msg, ok := f.(string); ok {
			sc.Flash = append(sc.Flash, msg)
		}
	}

	ctx.Set(sessionKey, sc)
	return sc
}

// save writes the session cookie back, consuming any read flashes.
func (sc *SessionContext) save(ctx echo.Context) error {
	return sc.session.Save(ctx.Request(), ctx.Response())
}

// login binds the session to email.
func (sc *SessionContext) login(email string) {
	sc.session.Values[emailKey] = email
	sc.Email = email
	sc.LoggedIn = true
}

// logout clears the session and expires the cookie.
func (sc *SessionContext) logout() {
	delete(sc.session.Values, emailKey)
	sc.session.Options.MaxAge = -1
	sc.Email = ""
	sc.LoggedIn = false
}

// addFlash queues a message for the next page render.
func (sc *SessionContext) addFlash(msg string) {
	sc.session.AddFlash(msg)
}

// requireLogin redirects anonymous visitors to the login page.
func (c *Controller) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sc := c.loadSession(ctx)
		if !sc.LoggedIn {
			sc.addFlash("please log in first")
			if err := sc.save(ctx); err != nil {
				return err
			}
			return ctx.Redirect(http.StatusSeeOther, "/dashboard/login")
		}
		return next(ctx)
	}
}
