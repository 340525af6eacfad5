// Package config holds pathwise's runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Content   ContentConfig   `yaml:"content"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// LogConfig selects the logger encoding and level.
type LogConfig struct {
	Mode  string `yaml:"mode" validate:"oneof=dev development prod production"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// DBConfig locates the SQLite database. An empty path means the default
// data directory.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ContentConfig locates course content. An empty dir serves the built-in
// sample course.
type ContentConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" validate:"required"`
}

// RecommendConfig configures recommendation defaults.
type RecommendConfig struct {
	// DefaultLimit caps recommendation lists when the caller gives no
	// limit. 0 means unbounded.
	DefaultLimit int `yaml:"default_limit" validate:"gte=0"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log:     LogConfig{Mode: "dev", Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		Metrics: MetricsConfig{Namespace: "pathwise"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PATHWISE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PATHWISE_LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
	if v := os.Getenv("PATHWISE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PATHWISE_DB"); v != "" {
		c.DB.Path = v
	}
	if v := os.Getenv("PATHWISE_CONTENT_DIR"); v != "" {
		c.Content.Dir = v
	}
	if v := os.Getenv("PATHWISE_CONTENT_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PATHWISE_CONTENT_WATCH: %w", err)
		}
		c.Content.Watch = b
	}
	if v := os.Getenv("PATHWISE_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("PATHWISE_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.HTTP.AllowedOrigins = origins
	}
	if v := os.Getenv("PATHWISE_METRICS_NAMESPACE"); v != "" {
		c.Metrics.Namespace = v
	}
	if v := os.Getenv("PATHWISE_RECOMMEND_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PATHWISE_RECOMMEND_LIMIT: %w", err)
		}
		c.Recommend.DefaultLimit = n
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return err
}
