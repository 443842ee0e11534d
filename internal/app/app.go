// Package app wires the session, HTTP client, cache, resources and router
// into one application instance.
package app

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"

	"github.com/Laisky/laisky-cms-admin/internal/api"
	"github.com/Laisky/laisky-cms-admin/internal/notify"
	"github.com/Laisky/laisky-cms-admin/internal/query"
	"github.com/Laisky/laisky-cms-admin/internal/resource"
	"github.com/Laisky/laisky-cms-admin/internal/router"
	"github.com/Laisky/laisky-cms-admin/internal/session"
	"github.com/Laisky/laisky-cms-admin/library/config"
	"github.com/Laisky/laisky-cms-admin/library/log"
)

// SessionExpiredMessage is shown when a 401 ends the session.
const SessionExpiredMessage = "Session expired, please login again"

// App holds the services shared by every screen and command.
type App struct {
	Settings *config.Settings
	Sessions *session.Manager
	API      *api.Client
	Auth     *api.Auth
	Cache    *query.Client
	Catalog  *resource.Catalog
	Notices  *notify.Center
	Router   *router.Router

	logger  logSDK.Logger
	closers []func() error
}

// Option customises New.
type Option func(*options)

type options struct {
	storage session.Storage
	logger  logSDK.Logger
	apiOpts []api.Option
}

// WithStorage overrides the session storage chosen by settings.
func WithStorage(s session.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAPIOptions appends client options, e.g. a custom transport.
func WithAPIOptions(opts ...api.Option) Option {
	return func(o *options) {
		o.apiOpts = append(o.apiOpts, opts...)
	}
}

// New builds the application from settings.
func New(ctx context.Context, settings *config.Settings, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.New("settings is nil")
	}

	o := &options{logger: log.Logger}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	a := &App{
		Settings: settings,
		logger:   o.logger.Named("app"),
	}

	storage := o.storage
	if storage == nil {
		var err error
		if storage, err = a.newStorage(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	var err error
	if a.Sessions, err = session.NewManager(ctx, storage,
		session.WithLogger(o.logger.Named("session"))); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "new session manager")
	}

	apiOpts := []api.Option{
		api.WithTokenSource(a.Sessions),
		api.WithUnauthorizedHook(func(ctx context.Context, token string) {
			a.Sessions.HandleUnauthorized(ctx, token)
		}),
		api.WithTimeout(settings.Timeout),
		api.WithRateLimit(settings.RateLimit),
		api.WithLogger(o.logger.Named("api")),
	}
	if a.API, err = api.New(settings.BaseURL(), append(apiOpts, o.apiOpts...)...); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "new api client")
	}
	if a.Auth, err = api.NewAuth(a.API, a.Sessions); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "new auth")
	}

	a.Cache = query.NewClient(
		query.WithFetchTimeout(settings.Timeout),
		query.WithLogger(o.logger.Named("query")),
	)
	a.Notices = notify.NewCenter()
	a.Catalog = resource.NewCatalog(resource.Deps{
		API:     a.API,
		Cache:   a.Cache,
		Notices: a.Notices,
		Logger:  o.logger.Named("resource"),
	})
	a.Router = router.New(a.Sessions, router.WithLogger(o.logger.Named("router")))
	a.Sessions.OnLogout(a.onLogout)

	a.logger.Debug("app ready",
		zap.String("base_url", settings.BaseURL()),
		zap.Bool("authenticated", a.Sessions.IsAuthenticated()))
	return a, nil
}

func (a *App) newStorage(ctx context.Context) (session.Storage, error) {
	switch a.Settings.Session.Backend {
	case config.SessionBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.Settings.Session.RedisAddr,
			DB:       a.Settings.Session.RedisDB,
			Password: a.Settings.Session.RedisPassword,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, errors.Wrapf(err, "ping redis %q", a.Settings.Session.RedisAddr)
		}
		s, err := session.NewRedisStorage(rdb, a.Settings.Session.RedisKey)
		if err != nil {
			return nil, errors.Wrap(err, "new redis session storage")
		}
		return s, nil
	default:
		s, err := session.NewFileStorage(a.Settings.Session.Path)
		if err != nil {
			return nil, errors.Wrap(err, "new file session storage")
		}
		return s, nil
	}
}

// onLogout drops cached data and sends the current screen back through the gate.
func (a *App) onLogout(reason session.LogoutReason) {
	for _, name := range a.Catalog.Names() {
		a.Cache.Invalidate(name)
	}
	if reason == session.ReasonUnauthorized {
		a.Notices.Toast(notify.Warning, SessionExpiredMessage)
	}

	m := a.Router.Refresh()
	a.logger.Info("logged out",
		zap.String("reason", string(reason)),
		zap.String("location", m.Location.String()))
}

// Close releases external connections.
func (a *App) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close")
		}
	}
	a.closers = nil
	return firstErr
}
