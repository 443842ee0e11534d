package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateStartupConfigWithGetterEmpty verifies empty configuration passes validation.
func TestValidateStartupConfigWithGetterEmpty(t *testing.T) {
	err := validateStartupConfigWithGetter(newMapConfigGetter(map[string]any{}))
	require.NoError(t, err)
}

// TestValidateStartupConfigWithGetterNil verifies a nil getter is rejected.
func TestValidateStartupConfigWithGetterNil(t *testing.T) {
	require.Error(t, validateStartupConfigWithGetter(nil))
}

// TestValidateStartupConfigWithGetterInvalidMode verifies an unknown api mode fails validation.
func TestValidateStartupConfigWithGetterInvalidMode(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"api": map[string]any{
				"mode": "staging",
				"dev":  "localhost:8000",
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.api.mode must be one of [develop, production]")
	require.Contains(t, err.Error(), "settings.api.dev must be a valid absolute URL")
}

// TestValidateStartupConfigWithGetterInvalidNumbers verifies negative limits fail validation.
func TestValidateStartupConfigWithGetterInvalidNumbers(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"api": map[string]any{
				"timeout":    -1,
				"rate_limit": "fast",
				"prefix":     "api",
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.api.timeout must be >= 0")
	require.Contains(t, err.Error(), "settings.api.rate_limit must be a number")
	require.Contains(t, err.Error(), "settings.api.prefix must be empty or start with '/'")
}

// TestValidateStartupConfigWithGetterRedisNeedsAddr verifies the redis backend requires an address.
func TestValidateStartupConfigWithGetterRedisNeedsAddr(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"session": map[string]any{
				"backend": "redis",
				"redis":   map[string]any{"db": 1.5},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.session.redis.addr is required")
	require.Contains(t, err.Error(), "settings.session.redis.db must be an integer")
}

// TestValidateStartupConfigWithGetterShortDevPassword verifies the dev admin password length check.
func TestValidateStartupConfigWithGetterShortDevPassword(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"devserver": map[string]any{
				"admin": map[string]any{"password": "123"},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "settings.devserver.admin.password")
}

// TestValidateStartupConfigWithGetterValidConfig verifies valid explicit configuration passes validation.
func TestValidateStartupConfigWithGetterValidConfig(t *testing.T) {
	cfg := map[string]any{
		"settings": map[string]any{
			"api": map[string]any{
				"mode":       "develop",
				"dev":        "http://localhost:8000",
				"prod":       "https://cms.example.com",
				"prefix":     "/api",
				"timeout":    30,
				"rate_limit": 2.5,
			},
			"session": map[string]any{
				"backend": "redis",
				"path":    "/tmp/cms-admin/session.json",
				"redis": map[string]any{
					"addr": "localhost:6379",
					"db":   0,
					"key":  "user",
				},
			},
			"devserver": map[string]any{
				"listen": "localhost:8000",
				"secret": "dev-secret",
				"admin": map[string]any{
					"email":    "admin@example.com",
					"password": "password",
				},
			},
		},
	}

	err := validateStartupConfigWithGetter(newMapConfigGetter(cfg))
	require.NoError(t, err)
}

// newMapConfigGetter builds a dotted-path getter for nested map-based test configuration.
// It accepts a nested map and returns a getter function compatible with validateStartupConfigWithGetter.
func newMapConfigGetter(root map[string]any) configGetter {
	return func(key string) any {
		if key == "" {
			return nil
		}

		parts := strings.Split(key, ".")
		var current any = root
		for _, part := range parts {
			nextMap, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			next, exists := nextMap[part]
			if !exists {
				return nil
			}
			current = next
		}

		return current
	}
}
