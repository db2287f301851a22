package service

import (
	"context"
	"errors"
	"sync"

	"habitforge/internal/analytics"
	"habitforge/internal/model"
)

type fakeUsers struct {
	byEmail map[string]*model.User
	nextID  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*model.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return model.ErrEmailExists
	}
	f.nextID++
	u.ID = f.nextID
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return f.byEmail[email], nil
}

type fakeHabits struct {
	mu       sync.Mutex
	habits   []model.Habit
	reminder map[string][]model.Habit
	err      error
}

func (f *fakeHabits) Create(_ context.Context, h *model.Habit) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.habits = append([]model.Habit{*h}, f.habits...)
	return nil
}

func (f *fakeHabits) ListByUser(_ context.Context, userID int) ([]model.Habit, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Habit
	for _, h := range f.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHabits) Get(_ context.Context, userID int, habitID string) (*model.Habit, error) {
	for _, h := range f.habits {
		if h.UserID == userID && h.ID == habitID {
			return &h, nil
		}
	}
	return nil, model.ErrHabitNotFound
}

func (f *fakeHabits) Delete(_ context.Context, userID int, habitID string) error {
	for i, h := range f.habits {
		if h.UserID == userID && h.ID == habitID {
			f.habits = append(f.habits[:i], f.habits[i+1:]...)
			return nil
		}
	}
	return model.ErrHabitNotFound
}

func (f *fakeHabits) ListByReminder(_ context.Context, hhmm string) ([]model.Habit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reminder[hhmm], nil
}

type toggleCall struct {
	userID  int
	habitID string
	date    string
}

type fakeCompletions struct {
	m       model.CompletionMap
	toggles []toggleCall
	done    map[string]bool
}

func (f *fakeCompletions) Toggle(_ context.Context, userID int, habitID, date string) (bool, error) {
	f.toggles = append(f.toggles, toggleCall{userID, habitID, date})
	if f.m == nil {
		f.m = model.CompletionMap{}
	}
	if f.m.Dates(habitID).Has(date) {
		delete(f.m[habitID], date)
		return false, nil
	}
	f.m.Add(habitID, date)
	return true, nil
}

func (f *fakeCompletions) Dates(_ context.Context, _ int, habitID string) ([]string, error) {
	return f.m.Dates(habitID).Sorted(), nil
}

func (f *fakeCompletions) ByUser(_ context.Context, _ int) (model.CompletionMap, error) {
	if f.m == nil {
		return model.CompletionMap{}, nil
	}
	return f.m, nil
}

func (f *fakeCompletions) CompletedOn(_ context.Context, ids []string, date string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if f.done[id+":"+date] {
			out[id] = true
		}
	}
	return out, nil
}

type recordingInvalidator struct {
	users []int
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int) {
	r.users = append(r.users, userID)
}

type fakeCache struct {
	stored  map[string]*analytics.Dashboard
	getErr  error
	cleared []int
}

func (c *fakeCache) key(userID int, date string) string {
	return dashboardKey(userID, date)
}

func (c *fakeCache) Get(_ context.Context, userID int, date string) (*analytics.Dashboard, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if d, ok := c.stored[c.key(userID, date)]; ok {
		return d, nil
	}
	return nil, errCacheMiss
}

func (c *fakeCache) Set(_ context.Context, userID int, date string, d *analytics.Dashboard) error {
	if c.stored == nil {
		c.stored = map[string]*analytics.Dashboard{}
	}
	c.stored[c.key(userID, date)] = d
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID int) error {
	c.cleared = append(c.cleared, userID)
	c.stored = nil
	return nil
}

type fakeFeed struct {
	notified []int
	err      error
}

func (f *fakeFeed) Notify(_ context.Context, userID int) error {
	f.notified = append(f.notified, userID)
	return f.err
}

func (f *fakeFeed) Subscribe(context.Context, int) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return ch, nil
}

type countingLoader struct {
	habits []model.Habit
	m      model.CompletionMap
	calls  int
	err    error
}

func (l *countingLoader) Snapshot(context.Context, int) ([]model.Habit, model.CompletionMap, error) {
	l.calls++
	return l.habits, l.m, l.err
}

type publishCall struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, routingKey string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, publishCall{routingKey, payload})
	return nil
}

type memoryOnce struct {
	seen     map[string]bool
	released []string
}

func (m *memoryOnce) AcquireOnce(_ context.Context, scope, id string) bool {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	k := scope + ":" + id
	if m.seen[k] {
		return false
	}
	m.seen[k] = true
	return true
}

func (m *memoryOnce) Release(_ context.Context, scope, id string) {
	delete(m.seen, scope+":"+id)
	m.released = append(m.released, id)
}

var errStore = errors.New("store unavailable")
