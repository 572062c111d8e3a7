// Package config turns the merged viper view (defaults, clipstash.toml,
// CLIPSTASH_* env vars, flags) into a validated Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the daemon configuration. Keys match the flag names.
type Config struct {
	MaxHistory    int           `mapstructure:"max-history" default:"100" validate:"min=1,max=100000"`
	Dedup         string        `mapstructure:"dedup" default:"adjacent" validate:"oneof=adjacent global"`
	PollInterval  time.Duration `mapstructure:"poll-interval" default:"200ms"`
	ReadAttempts  int           `mapstructure:"read-attempts" default:"3" validate:"min=1,max=50"`
	RetryDelay    time.Duration `mapstructure:"retry-delay" default:"50ms" validate:"gte=0"`
	DataDir       string        `mapstructure:"data-dir"`
	Storage       string        `mapstructure:"storage" default:"files" validate:"oneof=files sqlite"`
	RetentionDays int           `mapstructure:"retention-days" default:"10" validate:"min=1,max=365"`
	PruneSchedule string        `mapstructure:"prune-schedule" default:"@daily" validate:"required"`
	Headless      bool          `mapstructure:"headless"`

	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
	Token  string `mapstructure:"token"`
	Source string `mapstructure:"source"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads a Config from v. Keys absent from v, or set to their zero value,
// take the defaults above.
func Load(v *viper.Viper) (*Config, error) {
	c := new(Config)
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %q)", fe.Field(), fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port (got %q)", fe.Field(), fe.Value())
	case "required":
		return fe.Field() + " is required"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// DefaultDataDir is $HOME/.clipstash, or ./.clipstash if there is no home.
func DefaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".clipstash")
	}
	return ".clipstash"
}
