// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	all := []State{StateIdle, StateConnecting, StateStreaming, StateClosed, StateErrored}
	allowed := map[[2]State]bool{
		{StateIdle, StateConnecting}:      true,
		{StateClosed, StateConnecting}:    true,
		{StateErrored, StateConnecting}:   true,
		{StateConnecting, StateStreaming}: true,
		{StateConnecting, StateClosed}:    true,
		{StateConnecting, StateErrored}:   true,
		{StateStreaming, StateClosed}:     true,
		{StateStreaming, StateErrored}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			err := transition(from, to)
			if allowed[[2]State{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestState_StringAndActive(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "errored", StateErrored.String())
	assert.Equal(t, "State(42)", State(42).String())

	assert.True(t, StateConnecting.Active())
	assert.True(t, StateStreaming.Active())
	assert.False(t, StateClosed.Active())
	assert.False(t, StateIdle.Active())
}
