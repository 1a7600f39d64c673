package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/donghouse/dongometer/internal/types"
)

// RecordEventRequest is the producer-facing submission payload. Producers
// never supply timestamps; the store is the sole ordering authority.
type RecordEventRequest struct {
	Type    string   `json:"type" binding:"required,eventtype"`
	Value   *float64 `json:"value" binding:"omitempty,gte=0"`
	Details string   `json:"details"`
}

// RecordEventResponse echoes the accepted event with its assigned id and
// timestamp. ChaosScore is the score right after the append; it is omitted
// if the score query fails, since the event itself was already accepted.
type RecordEventResponse struct {
	Event      types.Event `json:"event"`
	ChaosScore *float64    `json:"chaos_score,omitempty"`
}

// handleRecordEvent ingests a single event: validate against the closed
// type set and value constraints, stamp the server-side timestamp via the
// store, invalidate the cached score. Rejections are synchronous and typed;
// there is no partial acceptance.
func (s *Service) handleRecordEvent(c *gin.Context) {
	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeBindError(c, err)
		return
	}

	value := float64(types.DefaultValue)
	if req.Value != nil {
		value = *req.Value
	}

	ev, err := s.store.Append(c.Request.Context(), types.EventType(req.Type), value, req.Details)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.calc.Invalidate()

	resp := RecordEventResponse{Event: ev}
	if sc, err := s.calc.Current(c.Request.Context(), s.now()); err == nil {
		resp.ChaosScore = &sc
	} else {
		s.log.Warn().Err(err).Msg("score unavailable after append")
	}

	c.JSON(http.StatusCreated, resp)
}

// writeBindError distinguishes the rejection taxonomy inside gin's binding
// errors: a bad or missing type maps to invalid_event_type, a negative or
// non-numeric value to invalid_value, anything else is a malformed payload.
func (s *Service) writeBindError(c *gin.Context, err error) {
	// A wrong JSON type for a field surfaces as an unmarshal error, not a
	// validation error; "value": "lots" is still a value rejection.
	var jerr *json.UnmarshalTypeError
	if errors.As(err, &jerr) && jerr.Field == "value" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_value",
			"message": types.ErrInvalidValue.Error(),
		})
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Type":
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "invalid_event_type",
					"message": types.ErrInvalidEventType.Error(),
				})
				return
			case "Value":
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "invalid_value",
					"message": types.ErrInvalidValue.Error(),
				})
				return
			}
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": err.Error()})
}
