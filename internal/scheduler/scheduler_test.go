package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every tuesday", func(context.Context) error { return nil }, nil); err == nil {
		t.Error("expected parse error")
	}
	// five-field specs are rejected; seconds come first
	if _, err := New("0 9 * * 1", func(context.Context) error { return nil }, nil); err == nil {
		t.Error("expected error for five-field spec")
	}
}

func TestRunNow(t *testing.T) {
	var calls int32
	s, err := New("0 0 6 * * *", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("logged, not returned")
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.RunNow()
	if atomic.LoadInt32(&calls) != 1 || s.Runs() != 1 {
		t.Errorf("calls = %d, runs = %d", calls, s.Runs())
	}
}

func TestScheduledTicks(t *testing.T) {
	fired := make(chan struct{}, 8)
	s, err := New("* * * * * *", func(context.Context) error {
		fired <- struct{}{}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire within 3s")
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32
	s, err := New("0 0 6 * * *", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		s.RunNow()
		close(done)
	}()
	<-started
	s.RunNow() // returns at once: first run still holds the slot
	close(release)
	<-done

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestStopCancelsJob(t *testing.T) {
	started := make(chan struct{})
	var canceled int32
	s, err := New("* * * * * *", func(ctx context.Context) error {
		select {
		case <-started:
		default:
			close(started)
		}
		<-ctx.Done()
		atomic.StoreInt32(&canceled, 1)
		return ctx.Err()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}
	s.Stop()
	if atomic.LoadInt32(&canceled) != 1 {
		t.Error("job context was not canceled before Stop returned")
	}
}
