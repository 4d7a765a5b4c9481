package api

import (
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"leadscope/internal/errors"
)

// SeriesSource describes a REST endpoint that serves one indicator as a JSON
// array of records
type SeriesSource struct {
	Name        string            `yaml:"name" json:"name" validate:"required"`
	URL         string            `yaml:"url" json:"url" validate:"required,url"`
	Headers     map[string]string `yaml:"headers" json:"headers,omitempty"`
	QueryParams map[string]string `yaml:"query_params" json:"query_params,omitempty"`

	// Authentication
	AuthMethod string `yaml:"auth_method" json:"auth_method" validate:"omitempty,oneof=none bearer api_key basic"`
	AuthToken  string `yaml:"auth_token" json:"-"`
	Username   string `yaml:"username" json:"username,omitempty"`
	Password   string `yaml:"password" json:"-"`

	// Data extraction, all gjson paths
	DataPath   string `yaml:"data_path" json:"data_path"`                         // array of records, empty for the document root
	KeyField   string `yaml:"key_field" json:"key_field"`                         // row key within a record (e.g. "date")
	ValueField string `yaml:"value_field" json:"value_field" validate:"required"` // numeric value within a record

	// Pagination
	PaginationType string `yaml:"pagination_type" json:"pagination_type" default:"none" validate:"oneof=none offset page cursor"`
	PageSize       int    `yaml:"page_size" json:"page_size" default:"100" validate:"gte=1"`
	MaxPages       int    `yaml:"max_pages" json:"max_pages" default:"10" validate:"gte=1"`

	RateLimit        int           `yaml:"rate_limit" json:"rate_limit" default:"60" validate:"gte=1"` // requests per minute
	Timeout          time.Duration `yaml:"timeout" json:"timeout" default:"30s"`
	BreakerFailures  uint32        `yaml:"breaker_failures" json:"breaker_failures" default:"3"`
	BreakerOpenDelay time.Duration `yaml:"breaker_open_delay" json:"breaker_open_delay" default:"5m"`
}

var validate = validator.New()

// WithDefaults fills every unset optional field
func (s SeriesSource) WithDefaults() SeriesSource {
	out := s
	if err := defaults.Set(&out); err != nil {
		panic(err)
	}
	return out
}

// Validate checks the source after defaults are applied
func (s SeriesSource) Validate() error {
	src := s.WithDefaults()
	if err := validate.Struct(src); err != nil {
		return &errors.AppError{
			Code:    errors.CodeConfigInvalid,
			Message: "invalid series source " + s.Name,
			Cause:   err,
		}
	}
	return nil
}
