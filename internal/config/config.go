// Package config provides configuration management for the platform
// server using Viper, loading from an optional YAML file and environment
// variables with the BOTFOLD_ prefix.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server Server `yaml:"server" mapstructure:"server"`
	CSRF   CSRF   `yaml:"csrf" mapstructure:"csrf"`
	Log    Log    `yaml:"log" mapstructure:"log"`
}

type Server struct {
	Listen        string `yaml:"listen" mapstructure:"listen"`
	AllowedOrigin string `yaml:"allowed_origin" mapstructure:"allowed_origin"`
	// Shared secret used to verify billing provider webhook signatures.
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

type CSRF struct {
	CookieSecure bool `yaml:"cookie_secure" mapstructure:"cookie_secure"`
	TokenBytes   int  `yaml:"token_bytes" mapstructure:"token_bytes"`
	// Path prefixes excluded from validation on top of the built-in
	// webhook and widget exemptions.
	ExemptPrefixes []string `yaml:"exempt_prefixes" mapstructure:"exempt_prefixes"`
}

type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Load reads configuration from the given file (optional, "" skips it)
// and the environment.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOTFOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.allowed_origin", "")
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("csrf.cookie_secure", true)
	v.SetDefault("csrf.token_bytes", 32)
	v.SetDefault("log.level", "info")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks for configuration that cannot possibly work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.CSRF.TokenBytes < 16 {
		return fmt.Errorf("csrf.token_bytes must be at least 16, got %d", c.CSRF.TokenBytes)
	}
	return nil
}
