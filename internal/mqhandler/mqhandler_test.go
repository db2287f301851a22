package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitforge/contracts/mq"
	"habitforge/pkg/util"
)

type recordingInvalidator struct {
	users []int
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int) {
	r.users = append(r.users, userID)
}

type memOnce struct {
	seen map[string]bool
}

func (m *memOnce) AcquireOnce(_ context.Context, scope, id string) bool {
	k := scope + "|" + id
	if m.seen[k] {
		return false
	}
	m.seen[k] = true
	return true
}

func (m *memOnce) Release(_ context.Context, scope, id string) {
	delete(m.seen, scope+"|"+id)
}

type recordingDelivery struct {
	got []mq.HabitReminderDuePayload
	err error
	// failures is how many calls fail with err before delivery succeeds.
	// Zero means every call returns err.
	failures int
	calls    int
}

func (d *recordingDelivery) Deliver(_ context.Context, p mq.HabitReminderDuePayload) error {
	d.calls++
	if d.err != nil && (d.failures == 0 || d.calls <= d.failures) {
		return d.err
	}
	d.got = append(d.got, p)
	return nil
}

func TestSnapshotChangedInvalidates(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewSnapshotChangedHandler(inv, zap.NewNop())

	for _, body := range []any{
		mq.HabitCreatedPayload{HabitID: "h1", UserID: 7, Name: "Read"},
		mq.HabitDeletedPayload{HabitID: "h1", UserID: 7},
		mq.CompletionToggledPayload{HabitID: "h2", UserID: 9, Date: "2026-10-19", Completed: true},
	} {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		require.NoError(t, h.HandleSnapshotChanged(context.Background(), raw))
	}
	assert.Equal(t, []int{7, 7, 9}, inv.users)
}

func TestSnapshotChangedRejectsBadPayloads(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewSnapshotChangedHandler(inv, zap.NewNop())

	for _, raw := range []string{`{not json`, `{"habit_id":"h1"}`} {
		err := h.HandleSnapshotChanged(context.Background(), json.RawMessage(raw))
		require.Error(t, err, raw)
		retryable, _ := util.IsRetryableError(err)
		assert.False(t, retryable, raw)
	}
	assert.Empty(t, inv.users)
}

func TestReminderDueDeliversOnce(t *testing.T) {
	once := &memOnce{seen: map[string]bool{}}
	d := &recordingDelivery{}
	h := NewReminderDueHandler(once, d, zap.NewNop())

	raw, err := json.Marshal(mq.HabitReminderDuePayload{
		HabitID: "h1", UserID: 3, Name: "Stretch", Date: "2026-10-19", ReminderTime: "08:00",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleReminderDue(context.Background(), raw))
	require.NoError(t, h.HandleReminderDue(context.Background(), raw))
	require.Len(t, d.got, 1)
	assert.Equal(t, "Stretch", d.got[0].Name)
}

func TestReminderDueRetriesFailedDelivery(t *testing.T) {
	once := &memOnce{seen: map[string]bool{}}
	d := &recordingDelivery{err: errors.New("push gateway timeout"), failures: 1}
	h := NewReminderDueHandler(once, d, zap.NewNop())

	raw := json.RawMessage(`{"habit_id":"h1","user_id":3,"name":"Stretch","date":"2026-10-19"}`)
	err := h.HandleReminderDue(context.Background(), raw)
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)

	// Redelivery of the same message reaches the device this time.
	require.NoError(t, h.HandleReminderDue(context.Background(), raw))
	assert.Equal(t, 2, d.calls)
	require.Len(t, d.got, 1)
	assert.Equal(t, "Stretch", d.got[0].Name)

	// Once delivered, further redeliveries are dropped.
	require.NoError(t, h.HandleReminderDue(context.Background(), raw))
	assert.Equal(t, 2, d.calls)
}

func TestReminderDueErrors(t *testing.T) {
	d := &recordingDelivery{err: errors.New("push gateway down")}
	h := NewReminderDueHandler(nil, d, zap.NewNop())

	raw := json.RawMessage(`{"habit_id":"h1","user_id":3,"date":"2026-10-19"}`)
	err := h.HandleReminderDue(context.Background(), raw)
	require.Error(t, err)
	retryable, _ := util.IsRetryableError(err)
	assert.True(t, retryable)

	err = h.HandleReminderDue(context.Background(), json.RawMessage(`{"user_id":3}`))
	require.Error(t, err)
	retryable, _ = util.IsRetryableError(err)
	assert.False(t, retryable)
}

func TestLogDelivery(t *testing.T) {
	assert.NoError(t, LogDelivery{Logger: zap.NewNop()}.Deliver(context.Background(), mq.HabitReminderDuePayload{HabitID: "h1"}))
}
