package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoLimiter(t *testing.T) {
	var l Limiter = NoLimiter{}
	for i := 0; i < 10000; i++ {
		assert.True(t, l.Allow(""))
	}
}

func TestLocalLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "burst spent")

	// keys are partitioned
	assert.True(t, l.Allow("b"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"), "refilled one token")
	assert.False(t, l.Allow("a"))
}

func TestLocalLimiterSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(5, 5)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(10 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}
