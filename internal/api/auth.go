package api

import (
	"context"
	"net/http"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/laisky-cms-admin/internal/form"
	"github.com/Laisky/laisky-cms-admin/internal/session"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Auth performs login and logout against the backend.
type Auth struct {
	client   *Client
	sessions *session.Manager
	logger   logSDK.Logger
}

// NewAuth binds the client to the session manager.
func NewAuth(client *Client, sessions *session.Manager) (*Auth, error) {
	if client == nil || sessions == nil {
		return nil, errors.New("auth needs both client and session manager")
	}

	return &Auth{
		client:   client,
		sessions: sessions,
		logger:   log.Logger.Named("auth"),
	}, nil
}

// Login validates the credentials locally, then exchanges them for a token.
// Local validation failures return form.Errors without sending a request.
func (a *Auth) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if errs := form.Validate(form.Login{Email: email, Password: password}); errs != nil {
		return nil, errs
	}

	sess := new(session.Session)
	// a stale token must neither ride along nor be ended by a rejected login
	if err := a.client.SendJSON(Anonymous(ctx), http.MethodPost, "/login",
		form.Login{Email: email, Password: password}, sess); err != nil {
		return nil, err
	}
	if !sess.Valid() {
		return nil, &Error{Kind: KindUnexpected, Status: http.StatusOK, Message: "login response has no token"}
	}

	if err := a.sessions.Start(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "start session")
	}

	return a.sessions.Current(), nil
}

// Logout tells the backend, then always clears the local session.
// Only a local storage failure is returned.
func (a *Auth) Logout(ctx context.Context) error {
	if a.sessions.IsAuthenticated() {
		if err := a.client.SendJSON(SkipUnauthorizedHook(ctx), http.MethodPost, "/logout", nil, nil); err != nil {
			a.logger.Warn("server logout failed, clear local session anyway", zap.Error(err))
		}
	}

	if err := a.sessions.End(ctx); err != nil {
		return errors.Wrap(err, "end session")
	}
	return nil
}
