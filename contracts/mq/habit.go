package mq

// Routing keys published on the "events" topic exchange.
const (
	RoutingKeyHabitCreated      = "habit.created"
	RoutingKeyHabitDeleted      = "habit.deleted"
	RoutingKeyCompletionToggled = "completion.toggled"
	RoutingKeyHabitReminderDue  = "habit.reminder.due"
	AggregateTypeHabit          = "habit"
)

type HabitCreatedPayload struct {
	HabitID string `json:"habit_id"`
	UserID  int    `json:"user_id"`
	Name    string `json:"name"`
	TraceID string `json:"trace_id,omitempty"`
}

type HabitDeletedPayload struct {
	HabitID string `json:"habit_id"`
	UserID  int    `json:"user_id"`
	TraceID string `json:"trace_id,omitempty"`
}

type CompletionToggledPayload struct {
	HabitID   string `json:"habit_id"`
	UserID    int    `json:"user_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	Completed bool   `json:"completed"`
	TraceID   string `json:"trace_id,omitempty"`
}

type HabitReminderDuePayload struct {
	HabitID      string `json:"habit_id"`
	UserID       int    `json:"user_id"`
	Name         string `json:"name"`
	Date         string `json:"date"`          // YYYY-MM-DD
	ReminderTime string `json:"reminder_time"` // HH:MM
}

// UserEvent is the minimal view every consumer needs to route by user.
type UserEvent struct {
	HabitID string `json:"habit_id"`
	UserID  int    `json:"user_id"`
}
