package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deltasquad/taskbot/internal/tasks"
)

func newStores(t *testing.T) (*tasks.MemoryStore, *MemoryStore) {
	t.Helper()
	taskStore := tasks.NewMemoryStore()
	remStore := NewMemoryStore(taskStore)
	taskStore.OnClose(remStore.CancelForTask)
	return taskStore, remStore
}

func TestCreateRejectsNonFuture(t *testing.T) {
	_, s := newStores(t)
	_, err := s.Create(context.Background(), 1, 5, time.Now().Add(-time.Minute))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Create() error = %v, want ErrInvalidArgument", err)
	}
	if due, _ := s.Due(context.Background(), time.Now().Add(time.Hour)); len(due) != 0 {
		t.Fatalf("rejected reminder was persisted: %v", due)
	}
}

func TestDueFiltersByTimeAndCancelFlag(t *testing.T) {
	ctx := context.Background()
	taskStore, s := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})

	at := time.Now().Add(time.Minute)
	id, err := s.Create(ctx, taskID, 5, at)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if due, _ := s.Due(ctx, time.Now()); len(due) != 0 {
		t.Fatalf("reminder due before its time: %v", due)
	}
	due, _ := s.Due(ctx, at.Add(time.Second))
	if len(due) != 1 || due[0].ID != id || due[0].TaskText != "buy milk" {
		t.Fatalf("Due() = %v, want the joined reminder", due)
	}

	if err := s.CloseBatch(ctx, []int64{id}); err != nil {
		t.Fatalf("CloseBatch() error = %v", err)
	}
	if due, _ := s.Due(ctx, at.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("closed reminder still due")
	}
	// Idempotent.
	if err := s.CloseBatch(ctx, []int64{id}); err != nil {
		t.Fatalf("repeat CloseBatch() error = %v", err)
	}
}

func TestTaskCloseCascadesToReminders(t *testing.T) {
	ctx := context.Background()
	taskStore, s := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})

	at := time.Now().Add(time.Minute)
	if _, err := s.Create(ctx, taskID, 5, at); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := taskStore.Close(ctx, taskID, 10, 1, false)
	if err != nil || !ok {
		t.Fatalf("Close() = %v, %v; want true, nil", ok, err)
	}
	if due, _ := s.Due(ctx, at.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("reminder survived the task close: %v", due)
	}
}

func TestRescheduleMovesExistingRow(t *testing.T) {
	ctx := context.Background()
	taskStore, s := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})

	id, _ := s.Create(ctx, taskID, 5, time.Now().Add(time.Minute))
	if err := s.CloseBatch(ctx, []int64{id}); err != nil {
		t.Fatalf("CloseBatch() error = %v", err)
	}

	later := time.Now().Add(time.Hour)
	ok, err := s.Reschedule(ctx, id, later)
	if err != nil || !ok {
		t.Fatalf("Reschedule() = %v, %v; want true, nil", ok, err)
	}

	rem, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rem.Canceled || !rem.At.Equal(later) {
		t.Fatalf("reminder after reschedule = %+v, want revived at %v", rem, later)
	}

	due, _ := s.Due(ctx, later.Add(time.Second))
	if len(due) != 1 {
		t.Fatalf("rescheduled reminder not due again, and no duplicate row expected: %v", due)
	}
}

func TestCancelSingleReminder(t *testing.T) {
	ctx := context.Background()
	taskStore, s := newStores(t)
	taskID, _ := taskStore.Add(ctx, 10, 1, "buy milk", tasks.AddOptions{})
	id, _ := s.Create(ctx, taskID, 5, time.Now().Add(time.Minute))

	if ok, _ := s.Cancel(ctx, id); !ok {
		t.Fatalf("Cancel() = false, want true")
	}
	if ok, _ := s.Cancel(ctx, id); ok {
		t.Fatalf("second Cancel() = true, want false")
	}
}
