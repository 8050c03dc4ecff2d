package model

// The status gate decides which records a synchronization pass acts on.
// Eligibility is recomputed on every pass; there is no "already considered"
// flag at this layer. Idempotency of remote creation is the synchronizer's
// responsibility, not the gate's.

// RequirementEligible reports whether a requirement should have a remote
// backlog item. Only requirements currently in READY_FOR_DEV qualify.
func RequirementEligible(r *Requirement) bool {
	return r != nil && r.Status == StatusReadyForDev
}

// TaskEligible reports whether a task should have a remote task created.
// The task must be in TO_DO and its parent requirement must itself be
// eligible; tasks under ineligible requirements are never submitted.
func TaskEligible(t *Task, parent *Requirement) bool {
	return t != nil && t.Status == TaskToDo && RequirementEligible(parent)
}

// EligibleRequirements filters rs down to the requirements the gate admits.
func EligibleRequirements(rs []*Requirement) []*Requirement {
	var out []*Requirement
	for _, r := range rs {
		if RequirementEligible(r) {
			out = append(out, r)
		}
	}
	return out
}

// EligibleTasks filters ts down to the tasks the gate admits under parent.
func EligibleTasks(ts []*Task, parent *Requirement) []*Task {
	var out []*Task
	for _, t := range ts {
		if TaskEligible(t, parent) {
			out = append(out, t)
		}
	}
	return out
}
