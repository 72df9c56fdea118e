// Package config loads the process-wide, immutable server configuration from
// YAML with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads filename, expands ${VARS}, decodes it into target and validates it.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadWithDefaults falls back to validating target as-is when filename does not exist.
func LoadWithDefaults[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if validator, ok := any(target).(Validator); ok {
			return validator.Validate()
		}
		return nil
	}
	return Load(filename, target)
}

// Config is the server configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Actor    ActorConfig    `yaml:"actor"`
	Keys     KeysConfig     `yaml:"keys"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Admin    AdminConfig    `yaml:"admin"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Actor.Validate(); err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	if err := c.Keys.Validate(); err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	return nil
}

// AppConfig holds logging and listener settings.
type AppConfig struct {
	LogLevel zapcore.Level `yaml:"log_level"`
	HTTP     HTTPConfig    `yaml:"http"`
}

func (c *AppConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Address returns the listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
	)
}

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// ActorConfig describes the single local actor.
type ActorConfig struct {
	// Domain is the public host name, optionally with a port.
	Domain   string `yaml:"domain"`
	Username string `yaml:"username"`
	// Slug names the note and its Create activity.
	Slug string `yaml:"slug"`
}

func (c *ActorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Domain, validation.Required, validation.By(noScheme)),
		validation.Field(&c.Username, validation.Required, validation.Match(usernamePattern)),
		validation.Field(&c.Slug, validation.Required, validation.Match(slugPattern)),
	)
}

func noScheme(value interface{}) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errors.New("must be a bare host name")
	}
	return nil
}

// KeysConfig points at the PEM files supplied by the key provider.
type KeysConfig struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`
}

func (c *KeysConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PrivateKeyPath, validation.Required),
		validation.Field(&c.PublicKeyPath, validation.Required),
	)
}

// DeliveryConfig bounds outbound deliveries.
type DeliveryConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

func (c *DeliveryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxResponseBytes, validation.Required, validation.Min(int64(1))),
	)
}

// AdminConfig guards the delivery trigger endpoint. An empty token disables it.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// TriggerEnabled reports whether POST /deliveries is served.
func (c *AdminConfig) TriggerEnabled() bool {
	return c.Token != ""
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: zapcore.InfoLevel,
			HTTP: HTTPConfig{
				Port:           3000,
				RequestTimeout: 10 * time.Second,
			},
		},
		Actor: ActorConfig{
			Username: "alice",
			Slug:     "hello-world",
		},
		Keys: KeysConfig{
			PrivateKeyPath: "./actorKey/private.pem",
			PublicKeyPath:  "./actorKey/public.pem",
		},
		Delivery: DeliveryConfig{
			Timeout:          10 * time.Second,
			MaxResponseBytes: 1 << 20,
		},
	}
}
