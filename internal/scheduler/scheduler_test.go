package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvault/mining-server/internal/service"
	"github.com/hashvault/mining-server/internal/utils"
)

// blockingService counts ticks and holds each one until released.
type blockingService struct {
	service.Service
	ticks   atomic.Int32
	release chan struct{}
}

func (s *blockingService) RunAccrualTick(ctx context.Context) (*service.TickSummary, error) {
	s.ticks.Add(1)
	if s.release != nil {
		<-s.release
	}
	return &service.TickSummary{}, nil
}

func TestRunTickSkipsWhileInFlight(t *testing.T) {
	svc := &blockingService{release: make(chan struct{})}
	sched, err := New(svc, utils.NewLogger(), "@hourly")
	require.NoError(t, err)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		assert.True(t, sched.RunTick(context.Background()))
	}()
	<-started

	// Wait until the first tick is inside the service.
	for svc.ticks.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A second invocation while the first is in flight is a no-op.
	assert.False(t, sched.RunTick(context.Background()))
	assert.Equal(t, int32(1), svc.ticks.Load())

	close(svc.release)
	wg.Wait()

	// Once the first tick finishes the guard is released.
	svc.release = nil
	assert.True(t, sched.RunTick(context.Background()))
	assert.Equal(t, int32(2), svc.ticks.Load())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	svc := &blockingService{}
	_, err := New(svc, utils.NewLogger(), "not a cron spec")
	assert.Error(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	svc := &blockingService{}
	sched, err := New(svc, utils.NewLogger(), "@hourly")
	require.NoError(t, err)

	sched.Start()
	sched.Stop()
	assert.Zero(t, svc.ticks.Load())
}
