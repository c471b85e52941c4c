package domain

// RunState is the state of one pipeline run
type RunState string

const (
	RunCollected  RunState = "collected"
	RunNormalized RunState = "normalized"
	RunCoalesced  RunState = "coalesced"
	RunRanked     RunState = "ranked"
	RunAnalyzed   RunState = "analyzed"
	RunMerged     RunState = "merged"
	RunTodoBuilt  RunState = "todo_built"
	RunFailed     RunState = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s RunState) IsTerminal() bool {
	return s == RunTodoBuilt || s == RunFailed
}

// runOrder is the only forward path a successful run takes
var runOrder = []RunState{
	RunCollected,
	RunNormalized,
	RunCoalesced,
	RunRanked,
	RunAnalyzed,
	RunMerged,
	RunTodoBuilt,
}

// CanTransition reports whether a run may move from s to next.
// Failed is reachable from any non-terminal state and a fresh run
// (empty state) starts at Collected.
func (s RunState) CanTransition(next RunState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == RunFailed {
		return true
	}
	if s == "" {
		return next == RunCollected
	}
	for i, st := range runOrder {
		if st == s {
			return i+1 < len(runOrder) && runOrder[i+1] == next
		}
	}
	return false
}
