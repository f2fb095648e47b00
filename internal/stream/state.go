// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a Consumer's stream.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Active reports whether the state holds (or is acquiring) a connection.
func (s State) Active() bool {
	return s == StateConnecting || s == StateStreaming
}

// ErrInvalidTransition is returned for a transition the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid stream state transition")

// transition validates from -> to. Start is only legal from a state with
// no live connection, which is what bounds a Consumer to one stream.
func transition(from, to State) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle, StateClosed, StateErrored:
		return to == StateConnecting
	case StateConnecting:
		return to == StateStreaming || to == StateClosed || to == StateErrored
	case StateStreaming:
		return to == StateClosed || to == StateErrored
	default:
		return false
	}
}
