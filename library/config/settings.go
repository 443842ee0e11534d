package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
)

const (
	// ModeDevelop selects the development backend.
	ModeDevelop = "develop"
	// ModeProduction selects the production backend.
	ModeProduction = "production"

	// SessionBackendFile keeps the session in a json file.
	SessionBackendFile = "file"
	// SessionBackendRedis keeps the session in one redis key.
	SessionBackendRedis = "redis"

	defaultAPIPrefix      = "/api"
	defaultAPITimeoutSecs = 30
	defaultSessionKey     = "user"
	defaultDevListen      = "localhost:8000"
)

// Environment variable names. They override the settings file.
const (
	EnvMode      = "CMSADMIN_MODE"
	EnvAPIDev    = "CMSADMIN_API_DEV"
	EnvAPIProd   = "CMSADMIN_API_PROD"
	EnvEditorKey = "CMSADMIN_EDITOR_KEY"
)

// Getter retrieves raw configuration values by dotted key path.
type Getter func(key string) any

// Settings is the resolved client configuration.
type Settings struct {
	Mode      string
	APIDev    string
	APIProd   string
	APIPrefix string
	Timeout   time.Duration
	RateLimit float64
	EditorKey string

	Session SessionSettings
	Dev     DevServerSettings
}

// SessionSettings controls where the session survives restarts.
type SessionSettings struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	RedisKey      string
}

// DevServerSettings configures the in-memory development backend.
type DevServerSettings struct {
	Listen        string
	Secret        string
	AdminEmail    string
	AdminPassword string
}

// BaseURL returns the REST root for the selected mode, including the api prefix.
func (s *Settings) BaseURL() string {
	origin := s.APIProd
	if s.Mode == ModeDevelop {
		origin = s.APIDev
	}

	return strings.TrimRight(origin, "/") + s.APIPrefix
}

// FromShared resolves settings from gconfig.Shared and the process environment.
func FromShared() (*Settings, error) {
	return Resolve(gconfig.Shared.Get, os.Getenv)
}

// Resolve builds Settings from a key getter and an env lookup.
func Resolve(get Getter, env func(string) string) (*Settings, error) {
	if get == nil {
		return nil, errors.New("config getter is nil")
	}
	if env == nil {
		env = func(string) string { return "" }
	}

	s := &Settings{
		Mode:      firstNonEmpty(env(EnvMode), stringOf(get("settings.api.mode")), stringOf(get("mode")), ModeProduction),
		APIDev:    firstNonEmpty(env(EnvAPIDev), stringOf(get("settings.api.dev"))),
		APIProd:   firstNonEmpty(env(EnvAPIProd), stringOf(get("settings.api.prod"))),
		APIPrefix: defaultAPIPrefix,
		Timeout:   defaultAPITimeoutSecs * time.Second,
		EditorKey: firstNonEmpty(env(EnvEditorKey), stringOf(get("settings.editor.api_key"))),
	}

	if raw := get("settings.api.prefix"); raw != nil {
		prefix := strings.TrimSpace(stringOf(raw))
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		s.APIPrefix = strings.TrimRight(prefix, "/")
	}

	if raw := get("settings.api.timeout"); raw != nil {
		secs, err := intOf(raw)
		if err != nil {
			return nil, errors.Wrap(err, "settings.api.timeout")
		}
		s.Timeout = time.Duration(secs) * time.Second
	}

	if raw := get("settings.api.rate_limit"); raw != nil {
		rps, err := strconv.ParseFloat(stringOf(raw), 64)
		if err != nil {
			return nil, errors.Wrap(err, "settings.api.rate_limit")
		}
		s.RateLimit = rps
	}

	switch s.Mode {
	case ModeDevelop, ModeProduction:
	default:
		return nil, errors.Errorf("unknown mode %q, expect %s or %s", s.Mode, ModeDevelop, ModeProduction)
	}

	s.Session = SessionSettings{
		Backend:       firstNonEmpty(stringOf(get("settings.session.backend")), SessionBackendFile),
		Path:          stringOf(get("settings.session.path")),
		RedisAddr:     stringOf(get("settings.session.redis.addr")),
		RedisPassword: stringOf(get("settings.session.redis.password")),
		RedisKey:      firstNonEmpty(stringOf(get("settings.session.redis.key")), defaultSessionKey),
	}
	if raw := get("settings.session.redis.db"); raw != nil {
		db, err := intOf(raw)
		if err != nil {
			return nil, errors.Wrap(err, "settings.session.redis.db")
		}
		s.Session.RedisDB = db
	}
	if s.Session.Path == "" {
		s.Session.Path = defaultSessionPath()
	}

	s.Dev = DevServerSettings{
		Listen:        firstNonEmpty(stringOf(get("settings.devserver.listen")), defaultDevListen),
		Secret:        firstNonEmpty(stringOf(get("settings.devserver.secret")), "dev-secret-change-me"),
		AdminEmail:    firstNonEmpty(stringOf(get("settings.devserver.admin.email")), "admin@example.com"),
		AdminPassword: firstNonEmpty(stringOf(get("settings.devserver.admin.password")), "password"),
	}

	return s, nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "cms-admin", "session.json")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return ""
}

func stringOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func intOf(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		n, err := strconv.Atoi(strings.TrimSpace(stringOf(v)))
		if err != nil {
			return 0, errors.Wrapf(err, "parse %q as int", stringOf(v))
		}
		return n, nil
	}
}
