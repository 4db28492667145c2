package frontend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/shell"
)

type sessionKey struct{}

// sessionFrom returns the session requireSession attached to ctx.
func sessionFrom(ctx context.Context) (session.Info, bool) {
	info, ok := ctx.Value(sessionKey{}).(session.Info)
	return info, ok
}

// lookupSession resolves the session cookie of r.
func (rt *router) lookupSession(r *http.Request) (session.Info, bool) {
	cookie, err := r.Cookie(session.KeyToken)
	if err != nil || cookie.Value == "" {
		return session.Info{}, false
	}
	info, err := rt.config.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			rt.logger.Warn("session lookup failed", "error", err)
		}
		return session.Info{}, false
	}
	if info.Expired(rt.now()) {
		return session.Info{}, false
	}
	return info, true
}

// requireSession redirects anonymous browsers to the login page. The live
// endpoint and downloads get a 401 instead.
func (rt *router) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := rt.lookupSession(r)
		if !ok {
			if r.URL.Path == "/ws" || strings.HasPrefix(r.URL.Path, "/export/") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			rt.clearCookie(w)
			http.Redirect(w, r, rt.config.BasePath+"/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, info)))
	})
}

// handleLoginPage serves GET /login.
func (rt *router) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if info, ok := rt.lookupSession(r); ok {
		http.Redirect(w, r, rt.config.BasePath+shell.HomePath(info.User.Role), http.StatusFound)
		return
	}
	if err := rt.renderer.login(w, http.StatusOK, LoginData{}); err != nil {
		rt.logger.Error("render login failed", "error", err)
	}
}

// handleLogin serves POST /login: the backend checks the credentials and
// the console stores the session it returns.
func (rt *router) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		rt.loginFailed(w, email, "Email and password are required")
		return
	}

	res, err := rt.config.API.Login(r.Context(), email, password)
	if err != nil {
		rt.logger.Warn("login failed", "email", email, "remote", r.RemoteAddr, "error", err)
		msg := page.Message(err)
		if errors.Is(err, api.ErrUnauthorized) {
			msg = "Invalid email or password"
		}
		rt.loginFailed(w, email, msg)
		return
	}

	info := session.FromLogin(*res, rt.now(), rt.config.SessionTTL)
	if err := rt.config.Sessions.Put(r.Context(), info); err != nil {
		rt.logger.Error("store session failed", "error", err)
		rt.loginFailed(w, email, "Could not start a session, please try again")
		return
	}
	rt.countLogin("success")
	rt.logger.Info("user logged in", "user", info.User.ID, "role", info.User.Role, "remote", r.RemoteAddr)

	http.SetCookie(w, &http.Cookie{
		Name:     session.KeyToken,
		Value:    info.Token,
		Path:     rt.cookiePath(),
		HttpOnly: true,
		Secure:   rt.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  info.ExpiresAt,
	})
	http.Redirect(w, r, rt.config.BasePath+shell.HomePath(info.User.Role), http.StatusFound)
}

func (rt *router) loginFailed(w http.ResponseWriter, email, msg string) {
	rt.countLogin("failure")
	if err := rt.renderer.login(w, http.StatusUnauthorized, LoginData{Email: email, Error: msg}); err != nil {
		rt.logger.Error("render login failed", "error", err)
	}
}

// handleLogout serves POST /logout. The backend session is ended on a
// best-effort basis; the local session is always removed.
func (rt *router) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.KeyToken); err == nil && cookie.Value != "" {
		if err := rt.config.API.WithSession(cookie.Value).Logout(r.Context()); err != nil {
			rt.logger.Warn("backend logout failed", "error", err)
		}
		if err := rt.config.Sessions.Delete(r.Context(), cookie.Value); err != nil {
			rt.logger.Warn("delete session failed", "error", err)
		}
	}
	rt.clearCookie(w)
	http.Redirect(w, r, rt.config.BasePath+"/login", http.StatusFound)
}

func (rt *router) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.KeyToken,
		Value:    "",
		Path:     rt.cookiePath(),
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (rt *router) cookiePath() string {
	if rt.config.BasePath == "" {
		return "/"
	}
	return rt.config.BasePath
}

func (rt *router) countLogin(outcome string) {
	if rt.config.Metrics != nil {
		rt.config.Metrics.Logins.WithLabelValues(outcome).Inc()
	}
}
