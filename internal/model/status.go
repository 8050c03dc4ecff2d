package model

import "fmt"

// RequirementStatus is a requirement lifecycle state.
//
// The main lifecycle is BACKLOG → REFINEMENT → READY_FOR_DEV → DONE, but the
// lifecycle is not strictly linear: backward transitions are legal for rework
// and rollback, and the side states below are reachable from any active state.
// Because of that, ordering comparisons on statuses are meaningless; the only
// valid question is whether a specific transition appears in the allowed
// transition table.
type RequirementStatus string

const (
	StatusBacklog     RequirementStatus = "BACKLOG"
	StatusRefinement  RequirementStatus = "REFINEMENT"
	StatusReadyForDev RequirementStatus = "READY_FOR_DEV"
	StatusDone        RequirementStatus = "DONE"

	// Side states, reachable from any active state.
	StatusBlocked   RequirementStatus = "BLOCKED"
	StatusInRework  RequirementStatus = "IN_REWORK"
	StatusTechSpike RequirementStatus = "TECH_SPIKE"
	StatusPaused    RequirementStatus = "PAUSED"
	StatusCancelled RequirementStatus = "CANCELLED"
	StatusRollback  RequirementStatus = "ROLLBACK"
)

// TaskStatus is a task lifecycle state.
type TaskStatus string

const (
	TaskToDo       TaskStatus = "TO_DO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// activeStates are the states on the main lifecycle from which side states
// can be entered. DONE is deliberately excluded: a finished requirement can
// only leave DONE through ROLLBACK or IN_REWORK.
var activeStates = []RequirementStatus{
	StatusBacklog,
	StatusRefinement,
	StatusReadyForDev,
}

// sideStates can be entered from any active state and exited back to any
// active state (or cancelled).
var sideStates = []RequirementStatus{
	StatusBlocked,
	StatusInRework,
	StatusTechSpike,
	StatusPaused,
	StatusRollback,
}

// requirementTransitions is the allowed-transition table. Keys are source
// states; values are the permitted targets.
var requirementTransitions = buildTransitions()

func buildTransitions() map[RequirementStatus][]RequirementStatus {
	t := map[RequirementStatus][]RequirementStatus{
		StatusBacklog:     {StatusRefinement, StatusCancelled},
		StatusRefinement:  {StatusReadyForDev, StatusBacklog, StatusCancelled},
		StatusReadyForDev: {StatusDone, StatusRefinement, StatusBacklog, StatusCancelled},

		// A finished requirement can be reopened for rework or rolled back,
		// but nothing else.
		StatusDone: {StatusRollback, StatusInRework},

		// CANCELLED is terminal.
		StatusCancelled: nil,
	}

	// Every active state can enter every side state.
	for _, from := range activeStates {
		t[from] = append(t[from], sideStates...)
	}

	// Every side state can return to any active state or be cancelled.
	for _, from := range sideStates {
		targets := append([]RequirementStatus{}, activeStates...)
		t[from] = append(targets, StatusCancelled)
	}

	return t
}

// Valid reports whether s is a known requirement status.
func (s RequirementStatus) Valid() bool {
	_, ok := requirementTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed out of s.
func (s RequirementStatus) Terminal() bool {
	return len(requirementTransitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether the transition from → to appears in the
// allowed-transition table.
func CanTransition(from, to RequirementStatus) bool {
	for _, t := range requirementTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition applies a status change to the requirement, retaining the old
// status in PreviousStatus. It fails if the transition is not allowed.
func (r *Requirement) Transition(to RequirementStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown requirement status %q", to)
	}
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("transition %s -> %s not allowed", r.Status, to)
	}
	r.PreviousStatus = r.Status
	r.Status = to
	return nil
}

// taskTransitions allows forward movement plus reopening a task.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskToDo:       {TaskInProgress, TaskDone},
	TaskInProgress: {TaskDone, TaskToDo},
	TaskDone:       {TaskToDo},
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// CanTransitionTask reports whether a task may move from → to.
func CanTransitionTask(from, to TaskStatus) bool {
	for _, t := range taskTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
