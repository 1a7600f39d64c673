package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/donghouse/dongometer/internal/history"
	"github.com/donghouse/dongometer/internal/types"
)

// HistoryResponse wraps a bucketed range query.
type HistoryResponse struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Width   string           `json:"width"`
	Buckets []history.Bucket `json:"buckets"`
}

// handleHistory serves fixed-width buckets over the trailing `hours` range.
// Query params: hours (default 24), width (Go duration, default configured
// bucket width). An empty range yields an empty bucket list, never an error.
func (s *Service) handleHistory(c *gin.Context) {
	hours, width, ok := s.rangeParams(c, 24)
	if !ok {
		return
	}

	now := s.now().UTC()
	from := now.Add(-time.Duration(hours) * time.Hour)

	buckets, err := s.hist.Buckets(c.Request.Context(), from, now, width)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		From:    from,
		To:      now,
		Width:   width.String(),
		Buckets: buckets,
	})
}

// handleLeaderboard serves the highest-scoring buckets in the trailing
// `hours` range (default one week), sorted score-descending with ties broken
// by earlier window start. Query params: hours, width, top.
func (s *Service) handleLeaderboard(c *gin.Context) {
	hours, width, ok := s.rangeParams(c, 7*24)
	if !ok {
		return
	}

	topK := s.cfg.History.LeaderboardSize
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(c, fmt.Errorf("%w: top must be a positive integer", types.ErrInvalidValue))
			return
		}
		topK = n
	}

	now := s.now().UTC()
	from := now.Add(-time.Duration(hours) * time.Hour)

	buckets, err := s.hist.Leaderboard(c.Request.Context(), from, now, width, topK)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		From:    from,
		To:      now,
		Width:   width.String(),
		Buckets: buckets,
	})
}

// rangeParams parses the shared hours/width query params. On failure it
// writes the error response and returns ok=false.
func (s *Service) rangeParams(c *gin.Context, defaultHours int) (int, time.Duration, bool) {
	hours := defaultHours
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(c, fmt.Errorf("%w: hours must be a positive integer", types.ErrInvalidValue))
			return 0, 0, false
		}
		hours = n
	}

	width := s.cfg.History.BucketWidth
	if raw := c.Query("width"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.writeError(c, fmt.Errorf("%w: width must be a positive duration", types.ErrInvalidValue))
			return 0, 0, false
		}
		width = d
	}

	return hours, width, true
}
