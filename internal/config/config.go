// Package config loads runtime configuration from a yaml file and
// VAULTBOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Seed is a pre-known ephemeral-to-phone mapping, loaded into the mapping
// registry at startup.
type Seed struct {
	Ephemeral string `mapstructure:"ephemeral"`
	Phone     string `mapstructure:"phone"`
}

type Config struct {
	// SessionDBPath holds the transport's pairing/session state.
	SessionDBPath string `mapstructure:"session_db_path"`
	// RegistryDBPath holds group records and learned phone mappings.
	RegistryDBPath string `mapstructure:"registry_db_path"`
	// VaultDir is the root of per-user artifact storage.
	VaultDir string `mapstructure:"vault_dir"`

	// OperatorJID receives non-fatal operational reports. Optional.
	OperatorJID string `mapstructure:"operator_jid"`
	RepoURL     string `mapstructure:"repo_url"`

	MaxConnAttempts    int           `mapstructure:"max_conn_attempts"`
	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay"`
	HardenInitialDelay time.Duration `mapstructure:"harden_initial_delay"`
	HardenStepDelay    time.Duration `mapstructure:"harden_step_delay"`

	Seeds []Seed `mapstructure:"seeds"`
}

// Load reads configuration from path (or ./vaultbot.yaml when path is empty)
// plus the environment. A missing file is fine; defaults cover everything but
// seeds.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vaultbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vaultbot")
	}
	v.SetEnvPrefix("VAULTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("session_db_path", "data/session.db")
	v.SetDefault("registry_db_path", "data/registry.db")
	v.SetDefault("vault_dir", "people")
	v.SetDefault("repo_url", "https://github.com/idokatz/vaultbot")
	v.SetDefault("max_conn_attempts", 5)
	v.SetDefault("reconnect_base_delay", 3*time.Second)
	v.SetDefault("harden_initial_delay", 2*time.Second)
	v.SetDefault("harden_step_delay", time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// SeedMap flattens the seed list for the resolver.
func (c *Config) SeedMap() map[string]string {
	if len(c.Seeds) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Seeds))
	for _, s := range c.Seeds {
		out[s.Ephemeral] = s.Phone
	}
	return out
}
