package fencex

import (
	"fmt"
)

// MaxTriggerNodes is the largest number of nodes a trigger condition may hold.
const MaxTriggerNodes = 16

// EventCounterOnNextOccurrence requests that an event node fires on the next
// occurrence of the event rather than on a specific counter value.
const EventCounterOnNextOccurrence int64 = -1

type EventID uint64

type TriggerOperator uint8

const (
	// TriggerOperatorNone is used with zero or one node.  The condition is
	// decided by that single node, or immediately if there are no nodes.
	TriggerOperatorNone TriggerOperator = iota
	TriggerOperatorAnd
	TriggerOperatorOr
)

func (o TriggerOperator) String() string {
	switch o {
	case TriggerOperatorNone:
		return "none"
	case TriggerOperatorAnd:
		return "and"
	case TriggerOperatorOr:
		return "or"
	}
	return fmt.Sprintf("unknown(%d)", uint8(o))
}

// TriggerNode is one of EventTriggerNode, FenceTriggerNode or
// FencePlaceholderTriggerNode.
type TriggerNode interface {
	isTriggerNode()
}

// EventTriggerNode is satisfied once the event counter reaches Counter, or on
// the next occurrence when Counter is EventCounterOnNextOccurrence.  When a
// PreconditionFence is set, the node mirrors that fence's outcome once the
// event has been observed.  A zero PreconditionFence means no precondition.
type EventTriggerNode struct {
	EventID           EventID
	Counter           int64
	PreconditionFence FenceID
}

// FenceTriggerNode is satisfied when Fence is signaled, mirroring its outcome.
type FenceTriggerNode struct {
	Fence FenceID
}

// FencePlaceholderTriggerNode asks the engine to create a new fence for this
// node when the transaction is submitted.
type FencePlaceholderTriggerNode struct{}

func (EventTriggerNode) isTriggerNode()            {}
func (FenceTriggerNode) isTriggerNode()            {}
func (FencePlaceholderTriggerNode) isTriggerNode() {}

type TriggerCondition struct {
	Nodes    []TriggerNode
	Operator TriggerOperator
}

func (c *TriggerCondition) validate(maxNodes int) error {
	if len(c.Nodes) > maxNodes {
		return invalidArgumentError{
			fmt.Sprintf("trigger condition contains %d nodes, more than the limit of %d", len(c.Nodes), maxNodes),
		}
	}

	switch c.Operator {
	case TriggerOperatorNone:
		if len(c.Nodes) > 1 {
			return invalidArgumentError{
				fmt.Sprintf("operator none accepts at most one node, got %d", len(c.Nodes)),
			}
		}
	case TriggerOperatorAnd, TriggerOperatorOr:
		if len(c.Nodes) == 0 {
			return invalidArgumentError{
				fmt.Sprintf("operator %s requires at least one node", c.Operator),
			}
		}
	default:
		return invalidArgumentError{fmt.Sprintf("unknown trigger operator %s", c.Operator)}
	}

	for nodeIdx, node := range c.Nodes {
		switch node := node.(type) {
		case EventTriggerNode:
			if node.Counter < 0 && node.Counter != EventCounterOnNextOccurrence {
				return invalidArgumentError{
					fmt.Sprintf("node %d has invalid event counter %d", nodeIdx, node.Counter),
				}
			}
		case FenceTriggerNode:
			if node.Fence == 0 {
				return invalidArgumentError{fmt.Sprintf("node %d has no fence", nodeIdx)}
			}
		case FencePlaceholderTriggerNode:
		case nil:
			return invalidArgumentError{fmt.Sprintf("node %d is nil", nodeIdx)}
		default:
			return invalidArgumentError{fmt.Sprintf("node %d has unsupported type %T", nodeIdx, node)}
		}
	}

	return nil
}

// boundTriggerNode is a trigger node with its fences resolved.  Every fence it
// points at is referenced for as long as the binding is held.
type boundTriggerNode struct {
	event        *EventTriggerNode
	fence        *Fence
	precondition *Fence
}

// releaseFences must be called exactly once per binding.
func (n *boundTriggerNode) releaseFences() {
	if n.fence != nil {
		n.fence.Release()
	}
	if n.precondition != nil {
		n.precondition.Release()
	}
}
