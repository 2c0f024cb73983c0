package engine

import (
	"github.com/deltasquad/taskbot/internal/policy"
	"github.com/deltasquad/taskbot/internal/tasks"
)

// Action is a menu selection, parsed once from the user's reply and matched
// against the policy-approved set.
type Action int

const (
	ActionNone Action = iota
	ActionClose
	ActionClaim
	ActionRelease
	ActionSetDeadline
	ActionClearDeadline
	ActionMark
	ActionUnmark
	ActionRemind
	ActionLeave
)

var actionLabels = map[Action]string{
	ActionClose:         "Close",
	ActionClaim:         "Take",
	ActionRelease:       "Return",
	ActionSetDeadline:   "Set deadline",
	ActionClearDeadline: "Clear deadline",
	ActionMark:          "Mark",
	ActionUnmark:        "Unmark",
	ActionRemind:        "Remind me",
	ActionLeave:         "Leave menu",
}

// Label is the button text shown for the action.
func (a Action) Label() string {
	return actionLabels[a]
}

// ParseAction maps a button reply back to its action. Unknown text yields
// ActionNone.
func ParseAction(text string) Action {
	for a, label := range actionLabels {
		if label == text {
			return a
		}
	}
	return ActionNone
}

// AllowedActions computes the menu offered for a task snapshot. Advisory
// only: every selection is re-checked, and the store re-validates again at
// write time.
func AllowedActions(t tasks.Task, userID int64, isAdmin bool) []Action {
	out := make([]Action, 0, 6)
	if policy.CanClose(t, userID, isAdmin) {
		out = append(out, ActionClose)
	}
	if policy.CanRelease(t, userID) {
		out = append(out, ActionRelease)
	} else if policy.CanSelfClaim(t, userID) {
		out = append(out, ActionClaim)
	}
	if policy.CanSetDeadline(t, userID) {
		out = append(out, ActionSetDeadline)
		if t.Deadline != nil {
			out = append(out, ActionClearDeadline)
		}
	}
	if policy.CanMark(t, userID, isAdmin) {
		if t.Marked {
			out = append(out, ActionUnmark)
		} else {
			out = append(out, ActionMark)
		}
	}
	out = append(out, ActionRemind, ActionLeave)
	return out
}

func containsAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
