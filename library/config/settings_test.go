package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mapGetter(m map[string]any) Getter {
	return func(key string) any { return m[key] }
}

func TestResolve_SelectsBaseURLByMode(t *testing.T) {
	env := map[string]string{
		EnvMode:    ModeDevelop,
		EnvAPIDev:  "http://localhost:8000/",
		EnvAPIProd: "https://cms.example.com",
	}
	s, err := Resolve(mapGetter(nil), func(k string) string { return env[k] })
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api", s.BaseURL())

	env[EnvMode] = ModeProduction
	s, err = Resolve(mapGetter(nil), func(k string) string { return env[k] })
	require.NoError(t, err)
	require.Equal(t, "https://cms.example.com/api", s.BaseURL())
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	get := mapGetter(map[string]any{
		"settings.api.mode": ModeProduction,
		"settings.api.prod": "https://file.example.com",
	})
	s, err := Resolve(get, func(k string) string {
		if k == EnvAPIProd {
			return "https://env.example.com"
		}
		return ""
	})
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com/api", s.BaseURL())
}

func TestResolve_ParsesNumbers(t *testing.T) {
	s, err := Resolve(mapGetter(map[string]any{
		"settings.api.timeout":        "5",
		"settings.api.rate_limit":     2.5,
		"settings.api.prefix":         "v1/",
		"settings.session.backend":    SessionBackendRedis,
		"settings.session.redis.db":   3,
		"settings.session.redis.addr": "127.0.0.1:6379",
	}), nil)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, s.Timeout)
	require.InDelta(t, 2.5, s.RateLimit, 0.0001)
	require.Equal(t, "/v1", s.APIPrefix)
	require.Equal(t, 3, s.Session.RedisDB)
	require.Equal(t, "user", s.Session.RedisKey)
}

func TestResolve_RejectsUnknownMode(t *testing.T) {
	_, err := Resolve(mapGetter(map[string]any{"settings.api.mode": "staging"}), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "staging")
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile,
		[]byte("CMSADMIN_TEST_DOTENV_A=from-file\nCMSADMIN_TEST_DOTENV_B=from-file\n"), 0o600))

	t.Setenv("CMSADMIN_TEST_DOTENV_A", "from-env")
	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("CMSADMIN_TEST_DOTENV_B") })

	require.Equal(t, "from-env", os.Getenv("CMSADMIN_TEST_DOTENV_A"))
	require.Equal(t, "from-file", os.Getenv("CMSADMIN_TEST_DOTENV_B"))
}
