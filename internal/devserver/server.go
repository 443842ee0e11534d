// Package devserver is an in-memory implementation of the CMS REST backend,
// used for local runs and tests.
package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Config configures the dev backend.
type Config struct {
	Secret        string
	AdminName     string
	AdminEmail    string
	AdminPassword string
	TokenTTL      time.Duration
	// NestedEnvelope answers lists as {<plural>: {data, total, ...}}
	// instead of {data, total}.
	NestedEnvelope bool
	// MaxUpload bounds an uploaded image, in bytes.
	MaxUpload int64
	Logger    logSDK.Logger
	Now       func() time.Time
}

// Server is the dev backend.
type Server struct {
	cfg    Config
	engine *gin.Engine
	store  *store
	logger logSDK.Logger

	mu      sync.Mutex
	secret  string
	revoked map[string]struct{}
	images  map[string][]byte
}

// New builds the gin engine with all routes under /api.
func New(cfg Config) (*Server, error) {
	if cfg.Secret == "" {
		return nil, errors.New("devserver secret is empty")
	}
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil, errors.New("devserver admin credentials are empty")
	}
	if cfg.AdminName == "" {
		cfg.AdminName = "Administrator"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxUpload <= 0 {
		cfg.MaxUpload = 3 * 1024 * 1024
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Logger.Named("devserver")
	}

	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		store:   newStore(cfg.Now),
		logger:  cfg.Logger,
		secret:  cfg.Secret,
		revoked: make(map[string]struct{}),
		images:  make(map[string][]byte),
	}

	s.store.mu.Lock()
	users, _ := s.store.collection("user")
	_, _ = s.store.insert(users, row{
		"name":        cfg.AdminName,
		"email":       cfg.AdminEmail,
		"is_activate": 1,
	})
	s.store.mu.Unlock()

	s.engine.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(gmw.WithLogger(s.logger.Named("gin"))),
		allowCORS,
	)
	s.routes()
	return s, nil
}

// Handler exposes the engine, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on http", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve devserver")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown devserver")
		}
		return nil
	}
}

func (s *Server) routes() {
	s.engine.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "hello, world")
	})
	s.engine.GET("/storage/images/:name", s.serveImage)

	api := s.engine.Group("/api")
	api.POST("/login", s.login)

	authed := api.Group("", s.requireAuth)
	authed.POST("/logout", s.logout)
	authed.GET("/me", s.me)

	for name := range s.store.collections {
		g := authed.Group("/" + name)
		g.GET("", s.list(name))
		g.GET("/non-sort", s.options(name))
		g.GET("/:id", s.get(name))
		g.POST("", s.create(name))
		g.POST("/:id", s.methodOverride(name))
		g.PATCH("", s.massUpdate(name))
		g.PATCH("/:id", s.update(name))
		g.PATCH("/restore/:id", s.restore(name))
		g.DELETE("/:id", s.delete(name))
		g.DELETE("/destroy/:id", s.destroy(name))
	}
}

func allowCORS(ctx *gin.Context) {
	if origin := ctx.Request.Header.Get("Origin"); origin != "" {
		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
		ctx.Header("Vary", "Origin")
	}
	if ctx.Request.Method == http.MethodOptions {
		ctx.AbortWithStatus(http.StatusNoContent)
		return
	}

	ctx.Next()
}

func abortMessage(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func abortValidation(ctx *gin.Context, fe fieldErrors) {
	ctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  fe,
	})
}
