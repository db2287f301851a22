package analytics

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"habitforge/internal/model"
)

// Bucket classifies the aggregate streak state a user is in.
type Bucket int

const (
	BucketEmpty Bucket = iota
	BucketRecovery
	BucketZero
	BucketBuilding
	BucketStrong
)

func (b Bucket) String() string {
	switch b {
	case BucketEmpty:
		return "empty"
	case BucketRecovery:
		return "recovery"
	case BucketZero:
		return "zero"
	case BucketBuilding:
		return "building"
	case BucketStrong:
		return "strong"
	}
	return "unknown"
}

// EmptyInsight is returned whenever the user has no habits.
const EmptyInsight = "Ready to build new habits? Create your first habit today."

// strongStreakThreshold is the total streak at which building turns strong.
const strongStreakThreshold = 7

var templates = map[Bucket][]string{
	BucketRecovery: {
		"Everyone has off days. Today is a fresh chance to rebuild momentum.",
		"One slip doesn't erase your progress. Get back on track now.",
	},
	BucketZero: {
		"Great start! Consistency compounds: small actions today build big results tomorrow.",
		"You're taking the first step toward lasting change. Keep showing up!",
	},
	BucketBuilding: {
		"You're on a {streak}-day streak, momentum is building!",
		"Every completed day makes the next one easier. {streak} days and counting.",
	},
	BucketStrong: {
		"Incredible {streak}-day streak! You're proving habits are built one day at a time.",
		"{streak} days strong. This discipline will pay off in ways you can't yet imagine.",
	},
}

// Templates returns a copy of the candidate messages for b, before
// substitution. BucketEmpty has the single EmptyInsight message.
func Templates(b Bucket) []string {
	if b == BucketEmpty {
		return []string{EmptyInsight}
	}
	return append([]string(nil), templates[b]...)
}

// Classify maps the snapshot to its insight bucket and total streak.
func Classify(habits []model.Habit, m model.CompletionMap, today time.Time) (Bucket, int) {
	if len(habits) == 0 {
		return BucketEmpty, 0
	}
	total := TotalStreak(habits, m, today)
	todayKey := dateKey(today, 0)
	missedToday := true
	for _, h := range habits {
		if m.Dates(h.ID).Has(todayKey) {
			missedToday = false
			break
		}
	}

	switch {
	case missedToday && total > 0:
		return BucketRecovery, total
	case total == 0:
		return BucketZero, total
	case total < strongStreakThreshold:
		return BucketBuilding, total
	default:
		return BucketStrong, total
	}
}

// Picker chooses an index in [0, n).
type Picker interface {
	Pick(n int) int
}

// RandomPicker is safe for concurrent use.
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPicker(seed uint64) *RandomPicker {
	return &RandomPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// FixedPicker always picks the same index, wrapped into range.
type FixedPicker int

func (f FixedPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	i := int(f) % n
	if i < 0 {
		i += n
	}
	return i
}

type Generator struct {
	picker Picker
}

func NewGenerator(picker Picker) *Generator {
	if picker == nil {
		picker = NewRandomPicker(uint64(time.Now().UnixNano()))
	}
	return &Generator{picker: picker}
}

// Generate picks a fresh message on every call; callers that need a stable
// message across renders must cache it.
func (g *Generator) Generate(habits []model.Habit, m model.CompletionMap, today time.Time) string {
	bucket, total := Classify(habits, m, today)
	return g.Render(bucket, total)
}

func (g *Generator) Render(bucket Bucket, totalStreak int) string {
	candidates := Templates(bucket)
	msg := candidates[g.picker.Pick(len(candidates))]
	return strings.ReplaceAll(msg, "{streak}", strconv.Itoa(totalStreak))
}
