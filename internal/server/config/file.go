package config

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/voiceauth/internal/flagx"
	"github.com/spf13/viper"
)

// parseFile overlays values from the file named by -c/-config. The format
// follows the file extension (json, yaml, toml). Keys absent from the file
// keep their current values.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

const envPrefix = "VOICEAUTH"

// envKeys lists every key that may be set through the environment, e.g.
// policy.code_ttl is read from VOICEAUTH_POLICY_CODE_TTL.
var envKeys = []string{
	"http_addr",
	"database_dsn",
	"secret_key",
	"token_ttl",
	"email_webhook_url",
	"email_webhook_timeout",
	"trusted_proxies",
	"bcrypt_cost",
	"log_level",
	"policy.register_attempts",
	"policy.register_window",
	"policy.login_attempts",
	"policy.login_window",
	"policy.email_sends",
	"policy.email_window",
	"policy.verify_attempts",
	"policy.verify_window",
	"policy.max_failed_logins",
	"policy.lock_duration",
	"policy.code_ttl",
	"policy.min_password_length",
}

// parseEnv overlays values from VOICEAUTH_* environment variables.
func parseEnv(config *Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}
