package fencex

// triggerState is the incrementally updated evaluation state of a trigger
// condition.  It is owned by a transaction and only accessed with the
// transaction lock held.
type triggerState struct {
	operator TriggerOperator
	numNodes int

	resolved      []bool
	signaledCount int
	firstErr      ErrorCode

	decided    bool
	resultCode ErrorCode
}

func newTriggerState(operator TriggerOperator, numNodes int) triggerState {
	s := triggerState{
		operator: operator,
		numNodes: numNodes,
		resolved: make([]bool, numNodes),
	}

	// an empty condition has nothing to wait for
	if numNodes == 0 {
		s.decide(ErrorCodeOK)
	}

	return s
}

func (s *triggerState) decide(code ErrorCode) {
	s.decided = true
	s.resultCode = code
}

// resolve feeds the outcome of a single node into the condition.  It returns
// true only for the call that decided the condition.  Notifications after the
// decision, and duplicate notifications for the same node, are ignored.
func (s *triggerState) resolve(nodeIdx int, code ErrorCode) bool {
	if s.decided {
		return false
	}
	if nodeIdx < 0 || nodeIdx >= s.numNodes || s.resolved[nodeIdx] {
		return false
	}

	s.resolved[nodeIdx] = true
	s.signaledCount++
	if code != ErrorCodeOK && s.firstErr == ErrorCodeOK {
		s.firstErr = code
	}

	allResolved := s.signaledCount == s.numNodes

	switch s.operator {
	case TriggerOperatorAnd:
		// a single failure can never be recovered from
		if code != ErrorCodeOK {
			s.decide(code)
			return true
		}
		if allResolved {
			s.decide(ErrorCodeOK)
			return true
		}
	case TriggerOperatorOr:
		if code == ErrorCodeOK {
			s.decide(ErrorCodeOK)
			return true
		}
		if allResolved {
			s.decide(s.firstErr)
			return true
		}
	case TriggerOperatorNone:
		s.decide(code)
		return true
	}

	return false
}

// cancel decides the condition as cancelled unless it is already decided.
func (s *triggerState) cancel() bool {
	if s.decided {
		return false
	}
	s.decide(ErrorCodeCancelled)
	return true
}

func (s *triggerState) isResolved(nodeIdx int) bool {
	return s.resolved[nodeIdx]
}
