package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCoalesces(t *testing.T) {
	d := New(20 * time.Millisecond)

	var mu sync.Mutex
	var fired []uint64
	done := make(chan struct{}, 10)
	effect := func(gen uint64) {
		mu.Lock()
		fired = append(fired, gen)
		mu.Unlock()
		done <- struct{}{}
	}

	for i := 0; i < 5; i++ {
		d.Schedule(effect)
	}
	last := d.Schedule(effect)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("effect never fired")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fired, 1)
	assert.Equal(t, last, fired[0])
	assert.True(t, d.IsCurrent(last))
	assert.False(t, d.Pending())
}

func TestCancelPending(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32
	gen := d.Schedule(func(uint64) { calls.Add(1) })
	require.True(t, d.Pending())

	d.CancelPending()
	assert.False(t, d.Pending())
	assert.False(t, d.IsCurrent(gen))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStaleEffectSeesNewGeneration(t *testing.T) {
	d := New(5 * time.Millisecond)
	started := make(chan uint64)
	release := make(chan struct{})
	d.Schedule(func(gen uint64) {
		started <- gen
		<-release
	})

	gen := <-started
	assert.True(t, d.IsCurrent(gen))
	d.CancelPending()
	assert.False(t, d.IsCurrent(gen), "an in-flight effect must observe that it was superseded")
	close(release)
}

func TestDefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultDelay, New(0).Delay())
	assert.Equal(t, 300*time.Millisecond, DefaultDelay)
}
