package smtpsession

// State is a step of the prober's failover state machine.
type State int

const (
	Idle State = iota
	Connecting
	Greeting
	Exchanging
	Evaluating
	Accepted
	Rejected
	NextHost
	ExhaustedHosts
)

var stateNames = [...]string{
	Idle:           "idle",
	Connecting:     "connecting",
	Greeting:       "greeting",
	Exchanging:     "exchanging",
	Evaluating:     "evaluating",
	Accepted:       "accepted",
	Rejected:       "rejected",
	NextHost:       "next_host",
	ExhaustedHosts: "exhausted_hosts",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Accepted || s == Rejected || s == ExhaustedHosts
}

// FailedAt maps the stage an exchange error occurred in to the state the
// machine was in.
func FailedAt(stage Stage) State {
	if stage == StageGreeting {
		return Greeting
	}
	return Exchanging
}
