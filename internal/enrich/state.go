package enrich

// State is the per-item lifecycle within a run.
type State string

const (
	StatePending  State = "pending"
	StateFetching State = "fetching"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

// ValidTransitions defines allowed state transitions. Done is terminal and
// checkpointed; Failed is terminal for the run but not sticky across runs.
var ValidTransitions = map[State][]State{
	StatePending:  {StateFetching, StateDone}, // straight to Done on a cache hit
	StateFetching: {StateDone, StateFailed},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
