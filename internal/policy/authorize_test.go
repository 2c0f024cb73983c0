package policy

import (
	"testing"
	"time"

	"github.com/deltasquad/taskbot/internal/tasks"
)

func TestCanClose(t *testing.T) {
	cases := []struct {
		name    string
		task    tasks.Task
		userID  int64
		isAdmin bool
		want    bool
	}{
		{"creator", tasks.Task{CreatorID: 1}, 1, false, true},
		{"worker", tasks.Task{CreatorID: 1, Workers: []int64{2}}, 2, false, true},
		{"anyone when unclaimed", tasks.Task{CreatorID: 1}, 3, false, true},
		{"stranger on claimed task", tasks.Task{CreatorID: 1, Workers: []int64{2}}, 3, false, false},
		{"admin on claimed task", tasks.Task{CreatorID: 1, Workers: []int64{2}}, 3, true, true},
		{"already closed", tasks.Task{CreatorID: 1, Closed: true}, 1, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanClose(tc.task, tc.userID, tc.isAdmin); got != tc.want {
				t.Fatalf("CanClose() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanSelfClaim(t *testing.T) {
	if !CanSelfClaim(tasks.Task{}, 5) {
		t.Fatalf("unclaimed open task should be claimable")
	}
	if CanSelfClaim(tasks.Task{Workers: []int64{4}}, 5) {
		t.Fatalf("claimed task should not be claimable")
	}
	if CanSelfClaim(tasks.Task{Closed: true}, 5) {
		t.Fatalf("closed task should not be claimable")
	}
}

func TestCanRelease(t *testing.T) {
	if !CanRelease(tasks.Task{Workers: []int64{5}}, 5) {
		t.Fatalf("self-claimed worker should be able to release")
	}
	if CanRelease(tasks.Task{Workers: []int64{5}, Assigned: true}, 5) {
		t.Fatalf("admin-assigned task must not be releasable")
	}
	if CanRelease(tasks.Task{Workers: []int64{4}}, 5) {
		t.Fatalf("non-worker must not be able to release")
	}
}

func TestCanSetDeadline(t *testing.T) {
	dl := time.Now().Add(time.Hour)
	cases := []struct {
		name   string
		task   tasks.Task
		userID int64
		want   bool
	}{
		{"creator", tasks.Task{CreatorID: 1}, 1, true},
		{"worker", tasks.Task{CreatorID: 1, Workers: []int64{2}}, 2, true},
		{"bystander on unclaimed task", tasks.Task{CreatorID: 1}, 3, false},
		{"closed", tasks.Task{CreatorID: 1, Closed: true, Deadline: &dl}, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanSetDeadline(tc.task, tc.userID); got != tc.want {
				t.Fatalf("CanSetDeadline() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanMark(t *testing.T) {
	if !CanMark(tasks.Task{CreatorID: 1}, 1, false) {
		t.Fatalf("creator should be able to mark")
	}
	if !CanMark(tasks.Task{CreatorID: 1}, 9, true) {
		t.Fatalf("admin should be able to mark")
	}
	if CanMark(tasks.Task{CreatorID: 1, Workers: []int64{2}}, 2, false) {
		t.Fatalf("plain worker must not be able to mark")
	}
	if CanMark(tasks.Task{CreatorID: 1, Closed: true}, 1, false) {
		t.Fatalf("closed task must not be markable")
	}
}
