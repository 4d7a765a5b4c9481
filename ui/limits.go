package ui

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/creasty/defaults"
	"github.com/gin-gonic/gin"

	"leadscope/internal/errors"
)

// Limits bound the work a single request can ask for. Elastic matching and
// dependence estimation grow faster than linearly with series length, and a
// scan multiplies that by the number of candidates.
type Limits struct {
	MaxBodyBytes    int64 `yaml:"max_body_bytes" default:"8388608" validate:"gte=1"`
	MaxSeriesLength int   `yaml:"max_series_length" default:"5000" validate:"gte=1"`
	MaxCandidates   int   `yaml:"max_candidates" default:"200" validate:"gte=1"`
}

// DefaultLimits returns the limits applied when none are configured
func DefaultLimits() Limits {
	var limits Limits
	if err := defaults.Set(&limits); err != nil {
		panic(err)
	}
	return limits
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLimits replaces the default request limits
func WithLimits(limits Limits) ServerOption {
	return func(s *Server) {
		s.limits = limits
	}
}

// limitBody caps how much of the request body the JSON binder may read
func (s *Server) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.limits.MaxBodyBytes)
	c.Next()
}

// checkSize rejects series longer than the limit and scans with too many candidates
func (s *Server) checkSize(target []float64, candidates int) error {
	if len(target) > s.limits.MaxSeriesLength {
		return errors.Newf(errors.CodeInvalidInput,
			"series has %d samples, the limit is %d", len(target), s.limits.MaxSeriesLength)
	}
	if candidates > s.limits.MaxCandidates {
		return errors.Newf(errors.CodeInvalidInput,
			"%d candidates requested, the limit is %d", candidates, s.limits.MaxCandidates)
	}
	return nil
}

// respondTooLarge answers 413 with the usual error body
func (s *Server) respondTooLarge(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{
		Code:    errors.CodeInvalidInput,
		Message: err.Error(),
	})
}

// bindJSON decodes the payload, answering 413 when the body exceeds the limit
// and 400 for any other decoding failure
func (s *Server) bindJSON(c *gin.Context, payload interface{}) bool {
	err := c.ShouldBindJSON(payload)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		s.respondTooLarge(c, errors.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
		return false
	}
	s.respondError(c, errors.InvalidInput(err.Error()))
	return false
}
