package api

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/fuomag9/cheez-dashboard/internal/config"
	"github.com/fuomag9/cheez-dashboard/internal/discord"
	"github.com/fuomag9/cheez-dashboard/internal/session"
)

// loginSuccessURL is where the browser lands after a completed login
const loginSuccessURL = "/?auth=success"

// HandleDiscordAuthorize redirects the browser to Discord's authorization page
func HandleDiscordAuthorize(cfg *config.Config, client *discord.Client, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURI := discord.RedirectURI(cfg.Discord.PublicHost(r.Host))

		authURL, err := client.AuthorizationURL(redirectURI)
		if err != nil {
			logger.Error("OAuth: cannot build authorization URL", "err", err)
			writeError(w, http.StatusInternalServerError, "Discord client ID not configured")
			return
		}

		logger.Info("OAuth: redirecting to Discord", "client_id", client.ClientID(), "redirect_uri", redirectURI)
		logger.Debug("OAuth: authorization URL", "url", authURL)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// HandleDiscordCallback completes the authorization-code flow: it exchanges
// the code for a token, fetches the user's profile and stores both in the
// session cookie. Each stage either hands its result to the next or writes
// the single error response and stops.
func HandleDiscordCallback(cfg *config.Config, client *discord.Client, sessions *session.Manager, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code := query.Get("code")
		if code == "" {
			if denied := query.Get("error"); denied != "" {
				logger.Warn("OAuth: authorization denied", "error", denied, "description", query.Get("error_description"))
			} else {
				logger.Warn("OAuth: invalid callback - missing code")
			}
			writeError(w, http.StatusBadRequest, "Missing authorization code")
			return
		}

		// Must match the redirect_uri sent with the authorization request
		redirectURI := discord.RedirectURI(cfg.Discord.PublicHost(r.Host))
		ctx := r.Context()

		token, err := client.ExchangeCode(ctx, code, redirectURI)
		if err != nil {
			status, message := exchangeFailure(err)
			logger.Error("OAuth: token exchange failed", "err", err)
			writeError(w, status, message)
			return
		}

		user, err := client.CurrentUser(ctx, token)
		if err != nil {
			logger.Error("OAuth: failed to get user info", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to get user information")
			return
		}

		if err := sessions.SetCookie(w, sessions.New(*user, token.AccessToken)); err != nil {
			logger.Error("OAuth: failed to establish session", "err", err)
			writeError(w, http.StatusInternalServerError, "Failed to establish session")
			return
		}

		logger.Info("OAuth: user authenticated", "user_id", user.ID, "username", user.Username)
		http.Redirect(w, r, loginSuccessURL, http.StatusFound)
	}
}

// exchangeFailure maps a token exchange error onto the response sent to the browser
func exchangeFailure(err error) (int, string) {
	var providerErr *discord.ProviderError
	switch {
	case errors.As(err, &providerErr):
		return http.StatusBadRequest, providerErr.Message()
	case errors.Is(err, config.ErrMissingClientID):
		return http.StatusInternalServerError, "Discord client ID not configured"
	case errors.Is(err, config.ErrMissingClientSecret):
		return http.StatusInternalServerError, "Discord client secret not configured"
	default:
		return http.StatusInternalServerError, "OAuth token exchange failed"
	}
}

// HandleBotInvite redirects to the URL that adds the bot to a server
func HandleBotInvite(client *discord.Client, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inviteURL, err := client.InviteURL()
		if err != nil {
			logger.Error("Invite: cannot build invite URL", "err", err)
			writeError(w, http.StatusInternalServerError, "Bot ID not configured")
			return
		}

		http.Redirect(w, r, inviteURL, http.StatusFound)
	}
}
