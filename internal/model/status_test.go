package model

import "testing"

func TestCanTransitionMainLifecycle(t *testing.T) {
	allowed := [][2]RequirementStatus{
		{StatusBacklog, StatusRefinement},
		{StatusRefinement, StatusReadyForDev},
		{StatusReadyForDev, StatusDone},
		// Backward transitions are legal for rework.
		{StatusRefinement, StatusBacklog},
		{StatusReadyForDev, StatusRefinement},
		{StatusReadyForDev, StatusBacklog},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]RequirementStatus{
		{StatusBacklog, StatusDone},          // no skipping to DONE
		{StatusBacklog, StatusReadyForDev},   // no skipping refinement
		{StatusCancelled, StatusBacklog},     // cancelled is terminal
		{StatusCancelled, StatusReadyForDev},
		{StatusDone, StatusReadyForDev}, // done only reopens via rollback/rework
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be denied", pair[0], pair[1])
		}
	}
}

func TestSideStatesReachableFromActiveStates(t *testing.T) {
	for _, from := range activeStates {
		for _, side := range sideStates {
			if !CanTransition(from, side) {
				t.Errorf("expected %s -> %s to be allowed", from, side)
			}
		}
	}

	// Side states return to any active state.
	for _, side := range sideStates {
		for _, to := range activeStates {
			if !CanTransition(side, to) {
				t.Errorf("expected %s -> %s to be allowed", side, to)
			}
		}
		if !CanTransition(side, StatusCancelled) {
			t.Errorf("expected %s -> CANCELLED to be allowed", side)
		}
	}
}

func TestDoneOnlyReopensViaRolllbackOrRework(t *testing.T) {
	if !CanTransition(StatusDone, StatusRollback) {
		t.Error("expected DONE -> ROLLBACK to be allowed")
	}
	if !CanTransition(StatusDone, StatusInRework) {
		t.Error("expected DONE -> IN_REWORK to be allowed")
	}
	if CanTransition(StatusDone, StatusBlocked) {
		t.Error("expected DONE -> BLOCKED to be denied")
	}
}

func TestTransitionRetainsPreviousStatus(t *testing.T) {
	r := &Requirement{ID: "req-1", Status: StatusRefinement}

	if err := r.Transition(StatusReadyForDev); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if r.Status != StatusReadyForDev {
		t.Errorf("status = %s, want READY_FOR_DEV", r.Status)
	}
	if r.PreviousStatus != StatusRefinement {
		t.Errorf("previous status = %s, want REFINEMENT", r.PreviousStatus)
	}

	// Invalid transitions leave the record untouched.
	if err := r.Transition(StatusReadyForDev); err == nil {
		t.Error("expected self-transition to fail")
	}
	if err := r.Transition("NONSENSE"); err == nil {
		t.Error("expected unknown status to fail")
	}
	if r.Status != StatusReadyForDev || r.PreviousStatus != StatusRefinement {
		t.Error("failed transition mutated the requirement")
	}
}

func TestTerminalStates(t *testing.T) {
	if !StatusCancelled.Terminal() {
		t.Error("CANCELLED should be terminal")
	}
	if StatusDone.Terminal() {
		t.Error("DONE should not be terminal (rollback is allowed)")
	}
	if RequirementStatus("NONSENSE").Terminal() {
		t.Error("unknown status should not report terminal")
	}
}

func TestTaskTransitions(t *testing.T) {
	if !CanTransitionTask(TaskToDo, TaskInProgress) {
		t.Error("expected TO_DO -> IN_PROGRESS")
	}
	if !CanTransitionTask(TaskDone, TaskToDo) {
		t.Error("expected DONE -> TO_DO (reopen)")
	}
	if CanTransitionTask(TaskToDo, TaskToDo) {
		t.Error("self-transition should be denied")
	}
}
