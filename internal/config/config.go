// Package config loads the formwizard CLI settings using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORMWIZARD_API_BASE_URL.
const EnvPrefix = "FORMWIZARD"

// Config holds the resolved settings.
type Config struct {
	API         API         `mapstructure:"api"`
	Auth        Auth        `mapstructure:"auth"`
	Locale      string      `mapstructure:"locale"`
	Log         Log         `mapstructure:"log"`
	Payload     Payload     `mapstructure:"payload"`
	Attachments Attachments `mapstructure:"attachments"`
	Templates   Templates   `mapstructure:"templates"`
}

// API configures the submission endpoint.
type API struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Auth locates the persisted credential.
type Auth struct {
	CredentialFile string `mapstructure:"credential_file"`
	TokenKey       string `mapstructure:"token_key"`
}

// Log selects the log level and handler format ("text" or "json").
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Payload controls how list values are encoded.
type Payload struct {
	ArrayEncoding string `mapstructure:"array_encoding"`
}

// Attachments tunes preview rendering.
type Attachments struct {
	PreviewConcurrency int `mapstructure:"preview_concurrency"`
}

// Templates points at a directory of wizard documents. Empty selects the
// bundled templates.
type Templates struct {
	Dir string `mapstructure:"dir"`
}

var keys = []string{
	"api.base_url",
	"api.timeout",
	"auth.credential_file",
	"auth.token_key",
	"locale",
	"log.level",
	"log.format",
	"payload.array_encoding",
	"attachments.preview_concurrency",
	"templates.dir",
}

// Load resolves settings with precedence ENV > file > defaults. An empty
// path falls back to the global config file when it exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("auth.credential_file", CredentialPath())
	v.SetDefault("auth.token_key", "access_token")
	v.SetDefault("locale", "en")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("payload.array_encoding", "bracket")
	v.SetDefault("attachments.preview_concurrency", 4)
	v.SetDefault("templates.dir", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	if path == "" && fileExists(GlobalPath()) {
		path = GlobalPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// GlobalPath returns $XDG_CONFIG_HOME/formwizard/formwizard.yml, or the
// ~/.config equivalent.
func GlobalPath() string {
	return filepath.Join(configDir(), "formwizard.yml")
}

// CredentialPath returns the default credential file location.
func CredentialPath() string {
	return filepath.Join(configDir(), "credentials.yml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "formwizard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "formwizard")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
