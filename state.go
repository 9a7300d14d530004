// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// ConnectionState tracks the lifecycle of one session. States move strictly
// forward except Active, which loops on itself for the steady-state update
// cycle. A session that reaches Closed or Failed is finished; a new
// connection requires a new Session.
type ConnectionState int

// Session lifecycle states.
const (
	StateConnecting ConnectionState = iota
	StateNegotiatingVersion
	StateNegotiatingSecurity
	StateAuthenticating
	StateInitializing
	StateActive
	StateClosed
	StateFailed
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiatingVersion:
		return "negotiating-version"
	case StateNegotiatingSecurity:
		return "negotiating-security"
	case StateAuthenticating:
		return "authenticating"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state permits no further transitions.
func (s ConnectionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// validTransition is the explicit transition relation of the session state
// machine: strictly forward progress, Active self-loop, and Closed/Failed
// reachable from anywhere non-terminal.
func validTransition(from, to ConnectionState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateClosed || to == StateFailed {
		return true
	}
	if from == StateActive && to == StateActive {
		return true
	}
	return to == from+1
}
