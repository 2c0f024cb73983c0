package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/tasks"
)

type fakeSender struct {
	mu        sync.Mutex
	delivered []int64
	failIDs   map[int64]bool
}

func (f *fakeSender) Deliver(_ context.Context, rem DueReminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[rem.ID] {
		return errors.New("transport down")
	}
	f.delivered = append(f.delivered, rem.ID)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestSweepDeliversOnceAfterDue(t *testing.T) {
	ctx := context.Background()
	taskStore, store := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})

	at := time.Now().Add(50 * time.Millisecond)
	if _, err := store.Create(ctx, taskID, 5, at); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sender := &fakeSender{}
	sched := NewScheduler(store, sender, time.Minute, nil, quietLogger())

	// Before the trigger instant nothing must go out.
	sched.Sweep(ctx)
	if sender.count() != 0 {
		t.Fatalf("delivered before due time: %v", sender.delivered)
	}

	time.Sleep(60 * time.Millisecond)
	sched.Sweep(ctx)
	if sender.count() != 1 {
		t.Fatalf("delivered = %d, want 1", sender.count())
	}

	// Delivery closed the reminder; it must not fire again.
	sched.Sweep(ctx)
	if sender.count() != 1 {
		t.Fatalf("redelivered a closed reminder: %v", sender.delivered)
	}
}

func TestSweepIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	taskStore, store := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})

	at := time.Now().Add(10 * time.Millisecond)
	bad, _ := store.Create(ctx, taskID, 5, at)
	good, _ := store.Create(ctx, taskID, 6, at)
	time.Sleep(20 * time.Millisecond)

	sender := &fakeSender{failIDs: map[int64]bool{bad: true}}
	sched := NewScheduler(store, sender, time.Minute, nil, quietLogger())

	sched.Sweep(ctx)
	if sender.count() != 1 || sender.delivered[0] != good {
		t.Fatalf("delivered = %v, want only %d", sender.delivered, good)
	}

	// The failed one stays due and is retried on the next sweep.
	sender.mu.Lock()
	sender.failIDs = nil
	sender.mu.Unlock()

	sched.Sweep(ctx)
	if sender.count() != 2 {
		t.Fatalf("failed reminder was not retried: %v", sender.delivered)
	}
	last := sender.delivered[len(sender.delivered)-1]
	if last != bad {
		t.Fatalf("retried id = %d, want %d", last, bad)
	}
}
