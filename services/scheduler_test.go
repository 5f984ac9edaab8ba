package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_Fires(t *testing.T) {
	var fired atomic.Bool
	task := Schedule(10*time.Millisecond, func() { fired.Store(true) })
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), task.Due(), 50*time.Millisecond)
	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	assert.False(t, task.Cancel(), "cancel after firing reports false")
}

func TestSchedule_Cancel(t *testing.T) {
	var fired atomic.Bool
	task := Schedule(50*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, task.Cancel())
	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())

	var none *ScheduledTask
	assert.False(t, none.Cancel())
}
