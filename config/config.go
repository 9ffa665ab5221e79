package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Config carries everything the CLI and SDK wiring need: target API, local
// credential storage, logging and metrics.
type Config struct {
	Mode string `mapstructure:"mode"`
	API  struct {
		BaseURL string        `mapstructure:"baseURL"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`
	Credentials struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"credentials"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

// InitConfig loads configuration from a config.yml on disk, falling back to
// the embedded defaults. Environment variables prefixed GALACTAVISTA_
// override file values (e.g. GALACTAVISTA_API_BASEURL).
func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("$HOME/.galactavista")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("GALACTAVISTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}
