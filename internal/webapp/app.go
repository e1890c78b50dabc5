package webapp

import (
	"encoding/json"
	"net/http"
	"time"

	herrors "github.com/canonica-labs/testrig/internal/errors"
	"github.com/canonica-labs/testrig/internal/featureflags"
	"github.com/canonica-labs/testrig/internal/seed"
	"github.com/canonica-labs/testrig/internal/storage"
	"github.com/canonica-labs/testrig/pkg/api"
)

// Config holds stub-host configuration.
type Config struct {
	// SessionTTL is how long issued sessions live.
	// Default: 24h.
	SessionTTL time.Duration

	// Version is reported on the root endpoint.
	Version string
}

// App is the stub host application. It authenticates against the
// metadata store's test principals and serves the effective flag
// snapshot, so suites can drive login and flag checks over HTTP the
// way they would against the real host.
type App struct {
	repo     storage.Repository
	flags    *featureflags.Manager
	sessions *SessionStore
	mux      *http.ServeMux
	version  string
}

// New creates the stub host over a metadata store and a flag manager.
func New(repo storage.Repository, flags *featureflags.Manager, cfg Config) *App {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Version == "" {
		cfg.Version = api.Version
	}

	a := &App{
		repo:     repo,
		flags:    flags,
		sessions: NewSessionStore(cfg.SessionTTL),
		mux:      http.NewServeMux(),
		version:  cfg.Version,
	}

	a.mux.HandleFunc(api.EndpointRoot, a.handleRoot)
	a.mux.HandleFunc(api.EndpointLogin, a.handleLogin)
	a.mux.HandleFunc(api.EndpointLogout, a.handleLogout)
	a.mux.HandleFunc(api.EndpointHealth, a.handleHealth)
	a.mux.HandleFunc(api.EndpointFlags, a.handleFlags)
	a.mux.HandleFunc(api.EndpointMe, a.handleMe)

	return a
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Sessions exposes the session store to the harness and tests.
func (a *App) Sessions() *SessionStore {
	return a.sessions
}

func (a *App) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != api.EndpointRoot {
		http.NotFound(w, r)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{
		"application": "testrig-stub",
		"version":     a.version,
	})
}

// handleLogin accepts a credential form, verifies it against the test
// principals, and issues a session cookie. The response is a redirect,
// matching the host's form-login flow.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue(api.FormUsername)
	password := r.PostFormValue(api.FormPassword)

	user, err := a.repo.GetUser(r.Context(), username)
	if err != nil || user.PasswordHash != seed.HashPassword(password) {
		loginErr := herrors.NewLoginFailed(username)
		a.writeError(w, http.StatusUnauthorized, loginErr.Message, loginErr.Reason, loginErr.Suggestion)
		return
	}

	session := a.sessions.Issue(user.Username, user.Role)
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, api.EndpointRoot, http.StatusFound)
}

// handleLogout revokes the session and clears the cookie. Logging out
// without a session is not an error.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(api.SessionCookie); err == nil {
		a.sessions.Revoke(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, api.EndpointLogin, http.StatusFound)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	result := a.health(r.Context())
	status := http.StatusOK
	if !result.Ready() {
		status = http.StatusServiceUnavailable
	}
	a.writeJSON(w, status, result)
}

func (a *App) handleFlags(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"flags": a.flags.Snapshot(),
	})
}

// handleMe reports the identity behind the session cookie.
func (a *App) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := a.currentSession(r)
	if !ok {
		a.writeError(w, http.StatusUnauthorized, "not logged in",
			"no valid session cookie on the request", "POST credentials to /login/ first")
		return
	}
	a.writeJSON(w, http.StatusOK, Identity{
		Username: session.Username,
		Role:     session.Role,
	})
}

// Identity is the payload served on /api/v1/me.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (a *App) currentSession(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(api.SessionCookie)
	if err != nil {
		return nil, false
	}
	return a.sessions.Resolve(cookie.Value)
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *App) writeError(w http.ResponseWriter, status int, message, reason, suggestion string) {
	a.writeJSON(w, status, map[string]string{
		"error":      message,
		"reason":     reason,
		"suggestion": suggestion,
	})
}
