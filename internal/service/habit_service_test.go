package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitforge/internal/model"
)

func newHabitService(t *testing.T) (*HabitService, *fakeHabits, *fakeCompletions, *recordingInvalidator) {
	t.Helper()
	habits := &fakeHabits{}
	completions := &fakeCompletions{}
	inv := &recordingInvalidator{}
	svc := NewHabitService(habits, completions, inv, zap.NewNop())
	// 23:30 UTC on the 19th is already the 20th in UTC+9.
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC) }
	return svc, habits, completions, inv
}

func strPtr(s string) *string { return &s }

func TestHabitCreate(t *testing.T) {
	svc, habits, _, inv := newHabitService(t)

	h, err := svc.Create(context.Background(), 7, CreateHabitInput{
		Name:         "  Meditate ",
		ReminderTime: strPtr("07:30"),
		Categories:   []string{"Mindfulness"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "Meditate", h.Name)
	assert.Equal(t, model.FrequencyDaily, h.Frequency)
	assert.Equal(t, []model.Category{model.CategoryMindfulness}, h.Categories)
	assert.Equal(t, model.DefaultColor, h.Color)
	require.NotNil(t, h.ReminderTime)
	assert.Equal(t, "07:30", h.ReminderTime.String())
	assert.Len(t, habits.habits, 1)
	assert.Equal(t, []int{7}, inv.users)
}

func TestHabitCreateRejectsInvalid(t *testing.T) {
	svc, habits, _, inv := newHabitService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateHabitInput{Name: "   "})
	assert.ErrorIs(t, err, model.ErrInvalidHabit)

	_, err = svc.Create(ctx, 1, CreateHabitInput{Name: "Run", ReminderTime: strPtr("25:00")})
	assert.ErrorIs(t, err, model.ErrInvalidHabit)

	_, err = svc.Create(ctx, 1, CreateHabitInput{Name: "Run", Categories: []string{"chores"}})
	assert.ErrorIs(t, err, model.ErrInvalidHabit)

	assert.Empty(t, habits.habits)
	assert.Empty(t, inv.users)
}

func TestHabitToggleCompletion(t *testing.T) {
	svc, _, completions, inv := newHabitService(t)
	ctx := context.Background()
	id := "0b8f0a4e-6a43-4a53-9b57-2f5f0c7c8d11"
	tokyo := time.FixedZone("UTC+9", 9*3600)

	done, err := svc.ToggleCompletion(ctx, 3, id, "", tokyo)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "2026-10-20", completions.toggles[0].date)

	done, err = svc.ToggleCompletion(ctx, 3, id, "2026-10-20", tokyo)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = svc.ToggleCompletion(ctx, 3, id, "2026-10-20", time.UTC)
	assert.ErrorIs(t, err, model.ErrFutureDate)

	_, err = svc.ToggleCompletion(ctx, 3, id, "2026/10/19", time.UTC)
	assert.ErrorIs(t, err, model.ErrInvalidDate)

	_, err = svc.ToggleCompletion(ctx, 3, "not-a-uuid", "", time.UTC)
	assert.ErrorIs(t, err, model.ErrHabitNotFound)

	assert.Equal(t, []int{3, 3}, inv.users)
}

func TestHabitDeleteAndDates(t *testing.T) {
	svc, habits, completions, _ := newHabitService(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, 1, CreateHabitInput{Name: "Read"})
	require.NoError(t, err)
	completions.m = model.NewCompletionMap(map[string][]string{h.ID: {"2026-10-18", "2026-10-19"}})

	dates, err := svc.CompletionDates(ctx, 1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-19", "2026-10-18"}, dates)

	_, err = svc.CompletionDates(ctx, 2, h.ID)
	assert.ErrorIs(t, err, model.ErrHabitNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, 2, h.ID), model.ErrHabitNotFound)
	require.NoError(t, svc.Delete(ctx, 1, h.ID))
	assert.Empty(t, habits.habits)
}

func TestHabitSnapshot(t *testing.T) {
	svc, habits, completions, _ := newHabitService(t)
	habits.habits = []model.Habit{{ID: "a", UserID: 1}, {ID: "b", UserID: 2}}
	completions.m = model.NewCompletionMap(map[string][]string{"a": {"2026-10-19"}})

	hs, m, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, hs, 1)
	assert.True(t, m.Dates("a").Has("2026-10-19"))

	habits.err = errStore
	_, _, err = svc.Snapshot(context.Background(), 1)
	assert.ErrorIs(t, err, errStore)
}
