package resource

// State is the lifecycle stage of a resource. It is independent from dirty
// tracking: a READ resource may hold unsaved edits.
type State int

const (
	// StateCreate marks a resource that has no backend identity yet
	StateCreate State = iota
	// StateRead marks a resource in sync with its last backend answer
	StateRead
	// StateUpdate marks a resource whose update is in flight
	StateUpdate
	// StateDelete marks a deleted resource, or one whose delete is in flight
	StateDelete
)

var stateNames = map[State]string{
	StateCreate: "CREATE",
	StateRead:   "READ",
	StateUpdate: "UPDATE",
	StateDelete: "DELETE",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseState converts a state name
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
