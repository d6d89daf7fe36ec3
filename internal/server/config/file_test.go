package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_parseFile(t *testing.T) {
	t.Run("loads from json", func(t *testing.T) {
		path := writeTempFile(t, "cfg.json", `{
			"http_addr": "www.example:9000",
			"database_dsn": "postgres://db",
			"secret_key": "my_secret_key",
			"token_ttl": "1h",
			"email_webhook_url": "http://mail/hook",
			"trusted_proxies": ["10.0.0.1"],
			"policy": {"register_attempts": 7, "code_ttl": "5m"}
		}`)

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseFile(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, time.Hour, cfg.TokenTTL)
		assert.Equal(t, "http://mail/hook", cfg.EmailWebhookURL)
		assert.Equal(t, []string{"10.0.0.1"}, cfg.TrustedProxies)
		assert.Equal(t, 7, cfg.Policy.RegisterAttempts)
		assert.Equal(t, 5*time.Minute, cfg.Policy.CodeTTL)
		assert.Equal(t, 10, cfg.Policy.LoginAttempts, "unset keys keep defaults")
	})

	t.Run("loads from yaml", func(t *testing.T) {
		path := writeTempFile(t, "cfg.yaml", "http_addr: \":7000\"\npolicy:\n  max_failed_logins: 3\n")

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseFile(cfg, []string{"-c", path}))

		assert.Equal(t, ":7000", cfg.HTTPAddr)
		assert.Equal(t, 3, cfg.Policy.MaxFailedLogins)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234"}
		require.NoError(t, parseFile(cfg, []string{"-a", ":1"}))
		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeTempFile(t, "bad.json", `{ this is not valid json`)
		assert.Error(t, parseFile(&Config{}, []string{"-c", path}))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, parseFile(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}

func Test_parseEnv(t *testing.T) {
	t.Setenv("VOICEAUTH_HTTP_ADDR", ":9999")
	t.Setenv("VOICEAUTH_TOKEN_TTL", "30m")
	t.Setenv("VOICEAUTH_POLICY_LOGIN_ATTEMPTS", "4")
	t.Setenv("VOICEAUTH_POLICY_LOCK_DURATION", "1h")

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.Policy.LoginAttempts)
	assert.Equal(t, time.Hour, cfg.Policy.LockDuration)
	assert.Equal(t, "secretKey", cfg.SecretKey, "unset variables keep current values")
}
