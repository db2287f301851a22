package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitforge/internal/analytics"
)

type AnalyticsService interface {
	Dashboard(ctx context.Context, userID int, loc *time.Location) (*analytics.Dashboard, error)
	Watch(ctx context.Context, userID int) (<-chan struct{}, error)
}

type AnalyticsHandler struct {
	analytics   AnalyticsService
	defaultZone *time.Location
	keepAlive   time.Duration
	logger      *zap.Logger
}

func NewAnalyticsHandler(svc AnalyticsService, defaultZone *time.Location, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics:   svc,
		defaultZone: defaultZone,
		keepAlive:   25 * time.Second,
		logger:      logger,
	}
}

func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}
	loc, err := location(c, h.defaultZone)
	if err != nil {
		respondError(c, h.logger, "Dashboard", err)
		return
	}

	d, err := h.analytics.Dashboard(c.Request.Context(), uid, loc)
	if err != nil {
		respondError(c, h.logger, "Dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Stream sends the dashboard as a server-sent event on connect and again
// after every change to the user's habits, until the client goes away.
func (h *AnalyticsHandler) Stream(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}
	loc, err := location(c, h.defaultZone)
	if err != nil {
		respondError(c, h.logger, "DashboardStream", err)
		return
	}

	ctx := c.Request.Context()
	changes, err := h.analytics.Watch(ctx, uid)
	if err != nil {
		respondError(c, h.logger, "DashboardStream", err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if !h.push(c, uid, loc) {
		return
	}

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-changes:
			if !open || !h.push(c, uid, loc) {
				return
			}
		case <-ping.C:
			c.SSEvent("ping", time.Now().Unix())
			c.Writer.Flush()
		}
	}
}

func (h *AnalyticsHandler) push(c *gin.Context, uid int, loc *time.Location) bool {
	d, err := h.analytics.Dashboard(c.Request.Context(), uid, loc)
	if err != nil {
		h.logger.Error("Dashboard stream compute failed", zap.Int("user_id", uid), zap.Error(err))
		c.SSEvent("error", gin.H{"error": "internal server error"})
		c.Writer.Flush()
		return false
	}
	c.SSEvent("dashboard", d)
	c.Writer.Flush()
	return true
}
