// Package config loads settings for the udfhost command from a YAML file and UDFHOST_*
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/upsun/udfhost/internal/logging"
)

const envPrefix = "UDFHOST"

type Config struct {
	Log       logging.Config  `mapstructure:"log"`
	Functions FunctionsConfig `mapstructure:"functions"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type FunctionsConfig struct {
	// Dirs are directories (or Git URLs) of function manifests, loaded after the builtins.
	Dirs []string `mapstructure:"dirs"`
	// Strict makes the first rejected function fail loading.
	Strict bool `mapstructure:"strict"`
}

type CacheConfig struct {
	// File is where compiled expressions are cached. Empty uses expr.cache in the user cache
	// directory.
	File string `mapstructure:"file"`
}

// NewViper returns a Viper instance mapping nested keys such as "log.level" to
// environment variables such as UDFHOST_LOG_LEVEL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("functions.dirs", []string{})
	v.SetDefault("functions.strict", false)
	v.SetDefault("cache.file", "")
	return v
}

// Load reads the config file at path, if any, then applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadWith(NewViper(), path)
}

// LoadWith is like Load but uses a Viper instance that the caller may have bound to flags.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}
	cnf := &Config{}
	if err := v.Unmarshal(cnf); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if _, err := logging.ParseLevel(cnf.Log.Level); err != nil {
		return nil, err
	}
	return cnf, nil
}
