package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habitforge/internal/model"
	"habitforge/internal/service"
)

type HabitService interface {
	Create(ctx context.Context, userID int, in service.CreateHabitInput) (*model.Habit, error)
	List(ctx context.Context, userID int) ([]model.Habit, error)
	Delete(ctx context.Context, userID int, habitID string) error
	ToggleCompletion(ctx context.Context, userID int, habitID, date string, loc *time.Location) (bool, error)
	CompletionDates(ctx context.Context, userID int, habitID string) ([]string, error)
}

type HabitHandler struct {
	habits      HabitService
	defaultZone *time.Location
	logger      *zap.Logger
}

func NewHabitHandler(habits HabitService, defaultZone *time.Location, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, defaultZone: defaultZone, logger: logger}
}

func (h *HabitHandler) List(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}

	habits, err := h.habits.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, "ListHabits", err)
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (h *HabitHandler) Create(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var in service.CreateHabitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	habit, err := h.habits.Create(c.Request.Context(), uid, in)
	if err != nil {
		respondError(c, h.logger, "CreateHabit", err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

func (h *HabitHandler) Delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}

	if err := h.habits.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteHabit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) Completions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}

	habitID := c.Param("id")
	dates, err := h.habits.CompletionDates(c.Request.Context(), uid, habitID)
	if err != nil {
		respondError(c, h.logger, "CompletionDates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit_id": habitID, "dates": dates})
}

type toggleRequest struct {
	Date string `json:"date"`
}

// Toggle accepts an empty body, in which case today in the caller's zone is toggled.
func (h *HabitHandler) Toggle(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	loc, err := location(c, h.defaultZone)
	if err != nil {
		respondError(c, h.logger, "ToggleCompletion", err)
		return
	}

	habitID := c.Param("id")
	completed, err := h.habits.ToggleCompletion(c.Request.Context(), uid, habitID, req.Date, loc)
	if err != nil {
		respondError(c, h.logger, "ToggleCompletion", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit_id": habitID, "completed": completed})
}
