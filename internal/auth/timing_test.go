package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWait_DelaysFailures(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 20, RandomDelayMs: 10})

	start := time.Now()
	td.Wait(false)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWait_SkipsSuccessByDefault(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 500, RandomDelayMs: 0})

	start := time.Now()
	td.Wait(true)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWait_DelayOnSuccessConfigured(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 20, DelayOnSuccess: true})

	start := time.Now()
	td.Wait(true)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitFrom_CountsElapsedWork(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 50, RandomDelayMs: 0})

	// Work already consumed most of the target; only the remainder is slept.
	start := time.Now().Add(-45 * time.Millisecond)
	before := time.Now()
	td.WaitFrom(start, false)
	slept := time.Since(before)

	assert.Less(t, slept, 40*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitFrom_NoSleepPastTarget(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 10, RandomDelayMs: 0})

	start := time.Now().Add(-time.Second)
	before := time.Now()
	td.WaitFrom(start, false)
	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestCryptoRandIntn_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, err := cryptoRandIntn(10)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
	}

	v, err := cryptoRandIntn(0)
	assert.NoError(t, err)
	assert.Zero(t, v)
}
