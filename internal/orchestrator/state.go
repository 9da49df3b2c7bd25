package orchestrator

import "encoding/json"

// Phase enumerates the verification state machine.
type Phase int

const (
	// PhaseDetecting is the resting state: frames are triaged and
	// qualifying candidates accumulate toward a window winner.
	PhaseDetecting Phase = iota
	// PhaseProcessing means a window winner is being embedded and verified.
	PhaseProcessing
	// PhaseMatched is terminal for the session: identity confirmed.
	PhaseMatched
	// PhaseTimedOut is surfaced once when a session expires, then the
	// machine returns to Detecting.
	PhaseTimedOut
	// PhaseError is surfaced once per hard failure, then the machine
	// returns to Detecting.
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseDetecting:  "detecting",
	PhaseProcessing: "processing",
	PhaseMatched:    "matched",
	PhaseTimedOut:   "timed_out",
	PhaseError:      "error",
}

// String returns the stable wire name of the phase.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "detecting"
}

// MarshalJSON encodes the phase as its wire name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// State is the UI-facing snapshot of the pipeline.
type State struct {
	Phase Phase `json:"phase"`
	// Progress is the collection window fraction in [0,1); it reads 1.0
	// once a winner is being processed.
	Progress float64 `json:"progress"`
	// Name is the matched employee's display name, set only on Matched.
	Name string `json:"name,omitempty"`
	// Reason is the failure code name, set only on Error.
	Reason string `json:"reason,omitempty"`
}
