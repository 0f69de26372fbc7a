package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jack/golang-campaign-redirect-service/internal/service"
	"github.com/stretchr/testify/assert"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) FlushPendingClickUpdates(ctx context.Context) (service.FlushResult, error) {
	f.calls.Add(1)
	return service.FlushResult{URLs: 1, Clicks: 3}, f.err
}

func TestSchedulerFlushesOnTick(t *testing.T) {
	f := &countingFlusher{}
	s := NewClickSyncScheduler(f, 10*time.Millisecond)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return f.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerFlushesOnStop(t *testing.T) {
	f := &countingFlusher{}
	s := NewClickSyncScheduler(f, time.Hour)
	s.Start()
	s.Stop()

	assert.Equal(t, int32(1), f.calls.Load())

	// second Stop is a no-op
	s.Stop()
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestSchedulerSurvivesFlushError(t *testing.T) {
	f := &countingFlusher{err: errors.New("redis down")}
	s := NewClickSyncScheduler(f, 10*time.Millisecond)
	s.Start()

	assert.Eventually(t, func() bool {
		return f.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestNewClickSyncSchedulerDefaultsInterval(t *testing.T) {
	s := NewClickSyncScheduler(&countingFlusher{}, 0)
	assert.Equal(t, time.Second, s.interval)
}
