package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(3, time.Minute)
	b.now = func() time.Time { return now }

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		assert.True(t, b.Allow())
		b.Record(boom)
	}
	assert.Equal(t, StateClosed, b.State())

	assert.True(t, b.Allow())
	b.Record(boom)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	now = now.Add(61 * time.Second)
	assert.True(t, b.Allow(), "trial call after cooldown")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "only one trial call")

	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerReopensOnFailedTrial(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	b.Record(errors.New("boom"))
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.Allow())
	b.Record(errors.New("still down"))
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	b.Record(errors.New("boom"))
	b.Record(nil)
	b.Record(errors.New("boom"))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReleaseFreesTrial(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	b.Record(errors.New("boom"))
	now = now.Add(2 * time.Minute)

	assert.True(t, b.Allow())
	b.Release()
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow(), "released trial can be retried")
	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
}

func TestNilBreaker(t *testing.T) {
	var b *Breaker
	assert.True(t, b.Allow())
	b.Record(errors.New("ignored"))
	assert.Equal(t, StateClosed, b.State())
}
