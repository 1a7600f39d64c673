// Package api provides the HTTP handlers for the Dongometer engine.
//
// The layer is deliberately thin: validate the payload, delegate to the
// store and the derived-metric components, map the error taxonomy to status
// codes. No semantic interpretation happens here; `details` passes through
// opaque and `type`/`value` arrive pre-classified by the producers.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/donghouse/dongometer/internal/core/config"
	"github.com/donghouse/dongometer/internal/history"
	"github.com/donghouse/dongometer/internal/score"
	"github.com/donghouse/dongometer/internal/store"
	"github.com/donghouse/dongometer/internal/types"
)

// Service wires the HTTP surface to the engine components.
type Service struct {
	store *store.Store
	calc  *score.Calculator
	hist  *history.Aggregator
	cfg   *config.Config
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the service and registers the custom payload
// validations on gin's validator engine.
func NewService(st *store.Store, calc *score.Calculator, hist *history.Aggregator, cfg *config.Config, log zerolog.Logger, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if calc == nil {
		return nil, fmt.Errorf("calc cannot be nil")
	}
	if hist == nil {
		return nil, fmt.Errorf("hist cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Idempotent: re-registering the same tag just replaces the func.
		if err := v.RegisterValidation("eventtype", validEventType); err != nil {
			return nil, fmt.Errorf("register eventtype validation: %w", err)
		}
	}

	s := &Service{
		store: st,
		calc:  calc,
		hist:  hist,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// validEventType is the validator.v10 check for the closed event type set.
func validEventType(fl validator.FieldLevel) bool {
	return types.EventType(fl.Field().String()).Valid()
}

// Register attaches all routes to the gin engine.
func (s *Service) Register(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)

	grp := r.Group("/api")
	grp.POST("/event", s.handleRecordEvent)
	grp.GET("/metrics", s.handleMetrics)
	grp.GET("/history", s.handleHistory)
	grp.GET("/leaderboard", s.handleLeaderboard)
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the error taxonomy to HTTP responses. The `error` field is
// a machine-readable discriminator so producers can tell a rejected payload
// from a failed durable write.
func (s *Service) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidEventType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_event_type", "message": err.Error()})
	case errors.Is(err, types.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_value", "message": err.Error()})
	case errors.Is(err, types.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable", "message": err.Error()})
	default:
		// Read-path database failures land here.
		s.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable", "message": err.Error()})
	}
}
