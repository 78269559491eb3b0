package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"app-bootstrap/core/database"
	"app-bootstrap/core/logger"
	"app-bootstrap/core/server"
	"app-bootstrap/core/storage"
	"app-bootstrap/feature/installer"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds the launch settings (bind, target, timeout, workers).
	Server server.Config `mapstructure:"server"`
	// Worker holds the worker process settings.
	Worker server.WorkerConfig `mapstructure:"worker"`
	// Install holds the dependency installer settings.
	Install installer.Config `mapstructure:"install"`
	// Storage holds configuration for the object storage package index (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the installed-package ledger.
	Database database.Config `mapstructure:"database"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// Load .env if present. Variables already set in the process
	// environment take precedence over the file.
	_ = godotenv.Load(filepath.Join(path, ".env"))

	v := viper.New()

	registerDefaults(v, reflect.TypeOf(Config{}), "")

	// Map environment variables to nested keys (e.g. SERVER_BIND -> server.bind)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// registerDefaults walks the config struct and registers every
// `mapstructure` key with its `default` tag value. Registering empty defaults
// is what makes AutomaticEnv see the key during Unmarshal.
func registerDefaults(v *viper.Viper, t reflect.Type, prefix string) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			registerDefaults(v, field.Type, key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
