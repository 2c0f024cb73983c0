// Package policy holds the advisory authorization predicates used to decide
// which menu actions to offer. The store re-validates every condition inside
// its conditional updates; nothing here is a security boundary on its own.
package policy

import "github.com/deltasquad/taskbot/internal/tasks"

// CanClose allows the creator, any current worker, anyone when nobody has
// claimed the task, and chat admins.
func CanClose(t tasks.Task, userID int64, isAdmin bool) bool {
	if t.Closed {
		return false
	}
	return isAdmin || t.CreatorID == userID || t.HasWorker(userID) || t.Unclaimed()
}

// CanSelfClaim allows taking an open task nobody is working on.
func CanSelfClaim(t tasks.Task, userID int64) bool {
	return !t.Closed && t.Unclaimed()
}

// CanAdminAssign allows explicit worker assignment by chat admins only.
func CanAdminAssign(isAdmin bool) bool {
	return isAdmin
}

// CanRelease allows a current worker to return a self-claimed task to the
// pool. Admin-assigned tasks cannot be walked away from.
func CanRelease(t tasks.Task, userID int64) bool {
	return !t.Closed && !t.Assigned && t.HasWorker(userID)
}

// CanSetDeadline allows the creator or a current worker to set or clear the
// deadline while the task is open.
func CanSetDeadline(t tasks.Task, userID int64) bool {
	return !t.Closed && (t.CreatorID == userID || t.HasWorker(userID))
}

// CanMark allows the creator or a chat admin to toggle the priority flag
// while the task is open.
func CanMark(t tasks.Task, userID int64, isAdmin bool) bool {
	return !t.Closed && (isAdmin || t.CreatorID == userID)
}
