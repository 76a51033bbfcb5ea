package queue

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSchedulerRunsRegisteredJobs(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 16)
	scheduler.Register(PeriodicJob{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run:      func(ctx context.Context) { ran <- struct{}{} },
	})
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("periodic job did not run")
		}
	}
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ran := make(chan struct{}, 64)
	scheduler.Register(PeriodicJob{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Run:      func(ctx context.Context) { ran <- struct{}{} },
	})
	scheduler.Start(context.Background())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("periodic job did not run")
	}
	scheduler.Stop()

	// Drain anything in flight, then verify silence.
	for {
		select {
		case <-ran:
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
	select {
	case <-ran:
		t.Fatal("job ran after Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSchedulerSkipsZeroInterval(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	scheduler.Register(PeriodicJob{Name: "broken", Interval: 0, Run: func(ctx context.Context) {
		t.Error("zero-interval job must not run")
	}})
	scheduler.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()
}
