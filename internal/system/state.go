// Package system runs a session against one vendor device.
package system

import "fmt"

// SessionState is the lifecycle phase of a Session.
type SessionState int

const (
	StateInitializing SessionState = iota
	StateRunning
	StateStopping
	StateStopped
	StateError
)

var stateNames = map[SessionState]string{
	StateInitializing: "INITIALIZING",
	StateRunning:      "RUNNING",
	StateStopping:     "STOPPING",
	StateStopped:      "STOPPED",
	StateError:        "ERROR",
}

func (s SessionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// A session is never restarted; rediscovery needs a new session.
// Error is reachable from every live state so that a failed shutdown is
// still reported.
var transitions = map[SessionState]map[SessionState]bool{
	StateInitializing: {StateRunning: true, StateError: true},
	StateRunning:      {StateStopping: true, StateError: true},
	StateStopping:     {StateStopped: true, StateError: true},
	StateError:        {StateStopping: true, StateStopped: true},
}

// ValidateTransition rejects state changes a session never makes.
func ValidateTransition(from, to SessionState) error {
	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("no transitions out of %s", from)
	}
	if !next[to] {
		return fmt.Errorf("invalid state transition: %s -> %s", from, to)
	}
	return nil
}
