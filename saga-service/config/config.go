package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	PublisherLog = "log"
	PublisherSNS = "sns"
)

type Config struct {
	ServiceName     string        `mapstructure:"service_name"`
	Env             string        `mapstructure:"env"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Telemetry       Telemetry     `mapstructure:"telemetry"`
	Events          Events        `mapstructure:"events"`
	Demo            Demo          `mapstructure:"demo"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type Events struct {
	Publisher   string `mapstructure:"publisher"`
	SNSTopicArn string `mapstructure:"sns_topic_arn"`
	// RecentLimit is how many events the log publisher keeps in memory
	RecentLimit int `mapstructure:"recent_limit"`
}

type Demo struct {
	Enabled bool `mapstructure:"enabled"`
}

// ReadConfig loads <ENVIRONMENT>.json (local.json by default) from this
// package's directory. SAGA_* environment variables override file values.
func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("unable to get current file")
	}

	return readConfig(viper.New(), filepath.Dir(filename), getConfigName())
}

func readConfig(v *viper.Viper, configDir, configName string) (*Config, error) {
	v.SetConfigName(configName)
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	// Allow environment variables to override config
	v.SetEnvPrefix("SAGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service_name", "saga-service")
	v.SetDefault("env", "local")
	v.SetDefault("port", "5000")
	v.SetDefault("shutdown_timeout", 30*time.Second)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")

	// Event publishing defaults
	v.SetDefault("events.publisher", PublisherLog)
	v.SetDefault("events.sns_topic_arn", "arn:aws:sns:us-east-1:000000000000:saga-events")
	v.SetDefault("events.recent_limit", 100)

	v.SetDefault("demo.enabled", true)
}

// bindEnv also accepts the unprefixed names container platforms set.
// The prefixed name wins when both are present.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"env":                  {"SAGA_ENV", "ENV"},
		"port":                 {"SAGA_PORT", "PORT"},
		"events.sns_topic_arn": {"SAGA_EVENTS_SNS_TOPIC_ARN", "SNS_TOPIC_ARN"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return errors.Wrapf(err, "error binding %s to environment", key)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Events.Publisher {
	case PublisherLog:
	case PublisherSNS:
		if c.Events.SNSTopicArn == "" {
			return errors.New("events.sns_topic_arn is required when events.publisher is sns")
		}
	default:
		return errors.Errorf("unknown events.publisher %q", c.Events.Publisher)
	}

	if c.Port == "" {
		return errors.New("port is required")
	}
	return nil
}
