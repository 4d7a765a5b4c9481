package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"leadscope/adapters/api"
	"leadscope/adapters/stats/backtest"
	"leadscope/adapters/stats/cascade"
	"leadscope/internal"
	"leadscope/internal/errors"
	"leadscope/ui"
)

// Config represents the complete application configuration
type Config struct {
	Log      internal.LogConfig `yaml:"log"`
	Server   ServerConfig       `yaml:"server"`
	Engine   cascade.Config     `yaml:"engine"`
	Backtest backtest.Config    `yaml:"backtest"`
	Sources  []api.SeriesSource `yaml:"sources"` // remote indicators joined onto file input
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Addr    string    `yaml:"addr" default:":8080" validate:"required"`
	GinMode string    `yaml:"gin_mode" default:"release" validate:"oneof=debug release test"`
	Limits  ui.Limits `yaml:"limits"`
}

var validate = validator.New()

// Default returns the configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored
// and variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to load %s", path)
		}
	}
	return nil
}

// Load builds the configuration from defaults, then the YAML file at path
// (optional), then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to parse config file %s", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid environment override")
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	env := &envParser{}

	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getEnvOrDefault("LOG_OUTPUT", cfg.Log.Output)

	cfg.Server.Addr = getEnvOrDefault("LISTEN_ADDR", cfg.Server.Addr)
	cfg.Server.GinMode = getEnvOrDefault("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.Limits.MaxBodyBytes = int64(env.intOrDefault("LEADSCOPE_MAX_BODY_BYTES", int(cfg.Server.Limits.MaxBodyBytes)))
	cfg.Server.Limits.MaxSeriesLength = env.intOrDefault("LEADSCOPE_MAX_SERIES_LENGTH", cfg.Server.Limits.MaxSeriesLength)
	cfg.Server.Limits.MaxCandidates = env.intOrDefault("LEADSCOPE_MAX_CANDIDATES", cfg.Server.Limits.MaxCandidates)

	cfg.Engine.Layer1Threshold = env.floatOrDefault("LEADSCOPE_LAYER1_THRESHOLD", cfg.Engine.Layer1Threshold)
	cfg.Engine.Layer1PValue = env.floatOrDefault("LEADSCOPE_LAYER1_P_VALUE", cfg.Engine.Layer1PValue)
	cfg.Engine.Layer2Threshold = env.floatOrDefault("LEADSCOPE_LAYER2_THRESHOLD", cfg.Engine.Layer2Threshold)
	cfg.Engine.Layer3DistThreshold = env.floatOrDefault("LEADSCOPE_LAYER3_DIST_THRESHOLD", cfg.Engine.Layer3DistThreshold)
	cfg.Engine.Layer3Radius = env.intOrDefault("LEADSCOPE_LAYER3_RADIUS", cfg.Engine.Layer3Radius)
	cfg.Engine.Stationarity = getEnvOrDefault("LEADSCOPE_STATIONARITY", cfg.Engine.Stationarity)
	cfg.Engine.SkipNormalization = !env.boolOrDefault("LEADSCOPE_NORMALIZE", !cfg.Engine.SkipNormalization)
	cfg.Engine.Workers = env.intOrDefault("LEADSCOPE_WORKERS", cfg.Engine.Workers)
	if layers := os.Getenv("LEADSCOPE_LAYERS"); layers != "" {
		cfg.Engine.Layers = splitList(layers)
	}

	cfg.Backtest.Chunks = env.intOrDefault("LEADSCOPE_BACKTEST_CHUNKS", cfg.Backtest.Chunks)
	cfg.Backtest.Workers = env.intOrDefault("LEADSCOPE_BACKTEST_WORKERS", cfg.Backtest.Workers)
	return env.err
}

func validateConfig(cfg *Config) error {
	if _, err := internal.ParseLogLevel(cfg.Log.Level); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if err := validate.Struct(cfg.Server); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if err := validate.Struct(cfg.Backtest); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	for _, source := range cfg.Sources {
		if err := source.Validate(); err != nil {
			return err
		}
	}
	return cfg.Engine.Validate()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and keeps the first value that fails to
// parse. A variable that is unset or empty keeps the default.
type envParser struct {
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = errors.Wrapf(errors.ConfigInvalid(err.Error()), "%s=%q", key, value)
	}
}

func (p *envParser) intOrDefault(key string, defaultValue int) int {
	value, ok := p.lookup(key)
	if !ok {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return intValue
}

func (p *envParser) floatOrDefault(key string, defaultValue float64) float64 {
	value, ok := p.lookup(key)
	if !ok {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return floatValue
}

func (p *envParser) boolOrDefault(key string, defaultValue bool) bool {
	value, ok := p.lookup(key)
	if !ok {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return boolValue
}
