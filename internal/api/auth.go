package api

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/fuomag9/cheez-dashboard/internal/session"
)

// HandleGetCurrentUser returns the profile stored in the session cookie
func HandleGetCurrentUser(sessions *session.Manager, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessions.FromRequest(r)
		switch {
		case errors.Is(err, session.ErrNoSession):
			logger.Debug("Auth: request without session cookie")
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		case err != nil:
			logger.Warn("Auth: rejected session cookie", "err", err)
			writeError(w, http.StatusUnauthorized, "Invalid session")
			return
		}

		writeJSON(w, http.StatusOK, s.User)
	}
}

// HandleLogout clears the session cookie. It needs no valid session, so
// repeating it is harmless.
func HandleLogout(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.ClearCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
