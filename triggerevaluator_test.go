package fencex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerStateEmptyCondition(t *testing.T) {
	s := newTriggerState(TriggerOperatorNone, 0)
	assert.True(t, s.decided)
	assert.Equal(t, ErrorCodeOK, s.resultCode)
	assert.False(t, s.cancel())
}

func TestTriggerStateNone(t *testing.T) {
	s := newTriggerState(TriggerOperatorNone, 1)
	assert.False(t, s.decided)

	assert.True(t, s.resolve(0, ErrorCode(-4)))
	assert.True(t, s.decided)
	assert.Equal(t, ErrorCode(-4), s.resultCode)
	assert.Equal(t, 1, s.signaledCount)
}

func TestTriggerStateAndShortCircuits(t *testing.T) {
	s := newTriggerState(TriggerOperatorAnd, 3)

	assert.False(t, s.resolve(0, ErrorCodeOK))
	assert.True(t, s.resolve(2, ErrorCode(-7)))
	assert.Equal(t, ErrorCode(-7), s.resultCode)

	// later notifications never change the outcome
	assert.False(t, s.resolve(1, ErrorCodeOK))
	assert.Equal(t, ErrorCode(-7), s.resultCode)
	assert.Equal(t, 2, s.signaledCount)
}

func TestTriggerStateAndAllSucceed(t *testing.T) {
	s := newTriggerState(TriggerOperatorAnd, 3)

	assert.False(t, s.resolve(1, ErrorCodeOK))
	assert.False(t, s.resolve(0, ErrorCodeOK))
	assert.True(t, s.resolve(2, ErrorCodeOK))
	assert.Equal(t, ErrorCodeOK, s.resultCode)
	assert.Equal(t, 3, s.signaledCount)
}

func TestTriggerStateOrEarlySuccess(t *testing.T) {
	s := newTriggerState(TriggerOperatorOr, 3)

	assert.False(t, s.resolve(0, ErrorCode(-2)))
	assert.True(t, s.resolve(1, ErrorCodeOK))
	assert.Equal(t, ErrorCodeOK, s.resultCode)

	assert.False(t, s.resolve(2, ErrorCode(-3)))
	assert.Equal(t, ErrorCodeOK, s.resultCode)
}

func TestTriggerStateOrAllFail(t *testing.T) {
	s := newTriggerState(TriggerOperatorOr, 3)

	assert.False(t, s.resolve(2, ErrorCode(-9)))
	assert.False(t, s.resolve(0, ErrorCode(-2)))
	assert.True(t, s.resolve(1, ErrorCode(-3)))

	// the first failure observed is reported
	assert.Equal(t, ErrorCode(-9), s.resultCode)
	assert.Equal(t, 3, s.signaledCount)
}

func TestTriggerStateIgnoresDuplicates(t *testing.T) {
	s := newTriggerState(TriggerOperatorAnd, 2)

	assert.False(t, s.resolve(0, ErrorCodeOK))
	assert.False(t, s.resolve(0, ErrorCodeOK))
	assert.False(t, s.resolve(0, ErrorCode(-1)))
	assert.False(t, s.decided)
	assert.Equal(t, 1, s.signaledCount)
	assert.True(t, s.isResolved(0))
	assert.False(t, s.isResolved(1))

	assert.False(t, s.resolve(5, ErrorCodeOK))
	assert.False(t, s.resolve(-1, ErrorCodeOK))
	assert.Equal(t, 1, s.signaledCount)
}

func TestTriggerStateCancel(t *testing.T) {
	s := newTriggerState(TriggerOperatorOr, 2)

	assert.True(t, s.cancel())
	assert.Equal(t, ErrorCodeCancelled, s.resultCode)
	assert.False(t, s.cancel())
	assert.False(t, s.resolve(0, ErrorCodeOK))
	assert.Equal(t, ErrorCodeCancelled, s.resultCode)
}
