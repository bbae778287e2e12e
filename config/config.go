package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LIBRARY_DATABASE_PATH.
const EnvPrefix = "LIBRARY"

// Config is the top-level configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig locates the catalog store.
type DatabaseConfig struct {
	Path        string        `mapstructure:"path" yaml:"path"`
	Lifetime    string        `mapstructure:"lifetime" yaml:"lifetime"` // auto, resident or per_call
	BusyTimeout time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// Load reads configuration from, in increasing precedence: defaults, the
// config file, a .env file and LIBRARY_* environment variables. path may be
// empty; then LIBRARY_CONFIG is consulted. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("database.path", "library.db")
	v.SetDefault("database.lifetime", "auto")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(ExpandHome(path))
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, isCfgNotFound := err.(viper.ConfigFileNotFoundError); !isCfgNotFound {
					return nil, errors.Wrap(err, "reading config")
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	return &cfg, nil
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
