package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitforge/internal/model"
	"habitforge/pkg/logger"
)

// TimezoneHeader names the IANA zone the caller's local day is computed in.
const TimezoneHeader = "X-Timezone"

// userID reads the id the auth middleware stored on the context.
func userID(c *gin.Context) (int, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok && id > 0
}

// location resolves the caller's zone from the X-Timezone header or tz query.
func location(c *gin.Context, fallback *time.Location) (*time.Location, error) {
	name := c.GetHeader(TimezoneHeader)
	if name == "" {
		name = c.Query("tz")
	}
	if name == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, model.ErrInvalidTimezone
	}
	return loc, nil
}

// respondError maps domain errors to status codes. Unknown errors are logged
// and hidden behind a generic 500.
func respondError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidHabit),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrFutureDate),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidTimezone):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrHabitNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrEmailExists):
		status = http.StatusConflict
	}

	l := logger.WithTrace(c.Request.Context(), log)
	if status == http.StatusInternalServerError {
		l.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	l.Warn(op+" rejected", zap.Int("status", status), zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
