package perfmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor()

	assert.NotNil(t, pm)
	assert.True(t, pm.startTime.IsZero())
	assert.True(t, pm.endTime.IsZero())
}

func TestStartStop(t *testing.T) {
	t.Run("stop records end time after start", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()

		assert.False(t, pm.startTime.IsZero())
		assert.False(t, pm.endTime.IsZero())
		assert.False(t, pm.endTime.Before(pm.startTime))
	})

	t.Run("stop without start does nothing", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Stop()

		assert.True(t, pm.endTime.IsZero())
	})

	t.Run("restart clears the previous stop", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		pm.Stop()
		pm.Start()

		assert.True(t, pm.endTime.IsZero())
		assert.Zero(t, pm.Elapsed())
	})
}

func TestElapsed(t *testing.T) {
	t.Run("zero before start", func(t *testing.T) {
		assert.Equal(t, 0.0, NewPerformanceMonitor().ElapsedMilliseconds())
	})

	t.Run("zero while running", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		pm.Start()

		assert.Equal(t, 0.0, pm.ElapsedMilliseconds())
	})

	t.Run("measures the stopped interval", func(t *testing.T) {
		pm := NewPerformanceMonitor()

		pm.Start()
		time.Sleep(50 * time.Millisecond)
		pm.Stop()

		assert.GreaterOrEqual(t, pm.Elapsed(), 50*time.Millisecond)
		assert.Greater(t, pm.ElapsedMilliseconds(), 40.0)
		assert.Less(t, pm.ElapsedMilliseconds(), 1000.0)
	})
}

func TestReset(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.Start()
	pm.Stop()
	pm.Reset()
	pm.Reset()

	assert.True(t, pm.startTime.IsZero())
	assert.True(t, pm.endTime.IsZero())
	assert.Zero(t, pm.Elapsed())
}
