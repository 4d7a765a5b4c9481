package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadscope/app"
	"leadscope/internal/errors"
)

type analyzePayload struct {
	Target     []float64              `json:"target" binding:"required"`
	Candidate  []float64              `json:"candidate" binding:"required"`
	WindowSize int                    `json:"window_size" binding:"gte=0"`
	Config     map[string]interface{} `json:"config"`
}

type scanPayload struct {
	Target     []float64              `json:"target" binding:"required"`
	Candidates map[string][]float64   `json:"candidates" binding:"required"`
	WindowSize int                    `json:"window_size" binding:"gte=0"`
	Config     map[string]interface{} `json:"config"`
}

type backtestPayload struct {
	Target     []float64              `json:"target" binding:"required"`
	Candidate  []float64              `json:"candidate" binding:"required"`
	WindowSize int                    `json:"window_size" binding:"required,gte=1"`
	Config     map[string]interface{} `json:"config"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var payload analyzePayload
	if !s.bindJSON(c, &payload) {
		return
	}
	if err := s.checkSize(payload.Target, 1); err != nil {
		s.respondTooLarge(c, err)
		return
	}
	report, err := s.service.Analyze(c.Request.Context(), app.AnalyzeRequest{
		Target:     payload.Target,
		Candidate:  payload.Candidate,
		WindowSize: payload.WindowSize,
		Overrides:  payload.Config,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleScan(c *gin.Context) {
	var payload scanPayload
	if !s.bindJSON(c, &payload) {
		return
	}
	if err := s.checkSize(payload.Target, len(payload.Candidates)); err != nil {
		s.respondTooLarge(c, err)
		return
	}
	report, err := s.service.Scan(c.Request.Context(), app.ScanRequest{
		Target:     payload.Target,
		Candidates: payload.Candidates,
		WindowSize: payload.WindowSize,
		Overrides:  payload.Config,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleBacktest(c *gin.Context) {
	var payload backtestPayload
	if !s.bindJSON(c, &payload) {
		return
	}
	if err := s.checkSize(payload.Target, 1); err != nil {
		s.respondTooLarge(c, err)
		return
	}
	report, err := s.service.Backtest(c.Request.Context(), app.BacktestRequest{
		Target:     payload.Target,
		Candidate:  payload.Candidate,
		WindowSize: payload.WindowSize,
		Overrides:  payload.Config,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// respondError maps application error codes onto HTTP statuses
func (s *Server) respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidInput, errors.CodeConfigInvalid:
		status = http.StatusBadRequest
	case errors.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	case errors.CodeNotFound:
		status = http.StatusNotFound
	}
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, errorResponse{Code: code, Message: message})
}
