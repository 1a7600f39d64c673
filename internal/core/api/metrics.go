package api

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/donghouse/dongometer/internal/types"
)

// MetricsResponse is the current-metrics view served to dashboards and bots.
type MetricsResponse struct {
	ChaosScore   float64                 `json:"chaos_score"`
	PizzaTotal   float64                 `json:"pizza_total"`
	WindowCounts map[types.EventType]int `json:"window_counts"`
	Window       string                  `json:"window"`
	Status       string                  `json:"status"`
	LastUpdated  time.Time               `json:"last_updated"`
}

// handleMetrics serves the live chaos score, the derived pizza total, and
// per-type counts inside the scoring window. Empty log means zeros, not an
// error.
func (s *Service) handleMetrics(c *gin.Context) {
	ctx := c.Request.Context()
	now := s.now()

	chaos, err := s.calc.Current(ctx, now)
	if err != nil {
		s.writeError(c, err)
		return
	}

	pizza, err := s.store.PizzaTotal(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}

	counts, err := s.calc.WindowCounts(ctx, now)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// The band classifies the score the caller sees; rounding first keeps a
	// displayed 20.0 from ever reading as "active".
	rounded := math.Round(chaos*10) / 10

	c.JSON(http.StatusOK, MetricsResponse{
		ChaosScore:   rounded,
		PizzaTotal:   pizza,
		WindowCounts: counts,
		Window:       s.calc.Params().Window.String(),
		Status:       statusBand(rounded),
		LastUpdated:  now.UTC(),
	})
}

// statusBand maps the score onto the dashboard's mood labels. The bands are
// the original ones; with the saturating normalization the score tops out
// below 100, so "apocalypse" marks a genuinely flooded window.
func statusBand(score float64) string {
	switch {
	case score <= 0:
		return "dormant"
	case score <= 20:
		return "calm"
	case score <= 40:
		return "active"
	case score <= 60:
		return "chaotic"
	case score <= 80:
		return "demonic"
	default:
		return "apocalypse"
	}
}
