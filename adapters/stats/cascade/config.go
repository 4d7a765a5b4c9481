package cascade

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"leadscope/adapters/stats/preprocess"
	"leadscope/internal/errors"
)

// Layer names accepted in Config.Layers
const (
	LayerRankCorr     = "rank_corr"
	LayerDependence   = "dependence"
	LayerElasticMatch = "elastic_match"
)

// DefaultLayers is the cascade order used when Config.Layers is empty
var DefaultLayers = []string{LayerRankCorr, LayerDependence, LayerElasticMatch}

// Config holds the engine thresholds. It is read once at construction and
// never changes afterwards.
type Config struct {
	Layer1Threshold     float64  `yaml:"layer1_threshold" json:"layer1_threshold" default:"0.7" validate:"gte=0,lte=1"`
	Layer1PValue        float64  `yaml:"layer1_p_value" json:"layer1_p_value" default:"0.05" validate:"gt=0,lte=1"`
	Layer2Threshold     float64  `yaml:"layer2_threshold" json:"layer2_threshold" default:"0.3" validate:"gte=0"`
	Layer3DistThreshold float64  `yaml:"layer3_dist_threshold" json:"layer3_dist_threshold" default:"0.2" validate:"gt=0"`
	Layer3Radius        int      `yaml:"layer3_radius" json:"layer3_radius" default:"5" validate:"gte=1"`
	Stationarity        string   `yaml:"stationarity" json:"stationarity" default:"none"`
	SkipNormalization   bool     `yaml:"skip_normalization" json:"skip_normalization"`
	Workers             int      `yaml:"workers" json:"workers" validate:"gte=0"`
	Layers              []string `yaml:"layers" json:"layers" validate:"omitempty,unique,dive,oneof=rank_corr dependence elastic_match"`
}

var validate = validator.New()

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		// only reachable with malformed struct tags
		panic(err)
	}
	return cfg
}

// Validate checks every threshold and the stationarity name
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &errors.AppError{
			Code:    errors.CodeConfigInvalid,
			Message: "invalid engine configuration",
			Cause:   describeValidation(err),
		}
	}
	if _, err := preprocess.ParseStationarity(c.Stationarity); err != nil {
		return err
	}
	return nil
}

// StageNames returns the configured cascade order
func (c Config) StageNames() []string {
	if len(c.Layers) == 0 {
		return append([]string(nil), DefaultLayers...)
	}
	return append([]string(nil), c.Layers...)
}

// ConfigFromMap builds a Config from a flat key/value mapping. Unrecognized
// keys are ignored and missing keys keep their defaults.
func ConfigFromMap(values map[string]interface{}) (Config, error) {
	return DefaultConfig().WithOverrides(values)
}

// WithOverrides returns a copy of c with the recognized keys of values
// applied, validated as a whole.
func (c Config) WithOverrides(values map[string]interface{}) (Config, error) {
	cfg := c
	cfg.Layers = append([]string(nil), c.Layers...)
	for key, raw := range values {
		var err error
		switch key {
		case "layer1_threshold":
			cfg.Layer1Threshold, err = toFloat(raw)
		case "layer1_p_value":
			cfg.Layer1PValue, err = toFloat(raw)
		case "layer2_threshold":
			cfg.Layer2Threshold, err = toFloat(raw)
		case "layer3_dist_threshold":
			cfg.Layer3DistThreshold, err = toFloat(raw)
		case "layer3_radius":
			cfg.Layer3Radius, err = toInt(raw)
		case "workers":
			cfg.Workers, err = toInt(raw)
		case "stationarity":
			cfg.Stationarity = fmt.Sprint(raw)
		case "normalize":
			var normalize bool
			normalize, err = toBool(raw)
			cfg.SkipNormalization = !normalize
		case "layers":
			cfg.Layers, err = toStrings(raw)
		default:
			continue
		}
		if err != nil {
			return Config{}, &errors.AppError{
				Code:    errors.CodeConfigInvalid,
				Message: "invalid value for " + key,
				Cause:   err,
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func describeValidation(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func toInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	}
	return 0, fmt.Errorf("expected an integer, got %T", raw)
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	}
	return false, fmt.Errorf("expected a boolean, got %T", raw)
}

func toStrings(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected layer names, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of layer names, got %T", raw)
}
