package fencex

import (
	"github.com/couchbase/fencex/zaputils"
	"go.uber.org/zap"
)

func eventCounterReached(node *EventTriggerNode, counter int64) bool {
	if node.Counter == EventCounterOnNextOccurrence {
		return true
	}
	return counter >= node.Counter
}

// eventAlreadySatisfied reports whether an explicit counter target was
// already reached before the transaction was submitted.  Next-occurrence
// nodes can never be satisfied in the past.
func eventAlreadySatisfied(events EventRegistry, node *EventTriggerNode) bool {
	if node.Counter == EventCounterOnNextOccurrence {
		return false
	}

	counter, seen := events.CurrentCounter(node.EventID)
	return seen && counter >= node.Counter
}

func (r *triggerRegistry) registerEventNode(txn *Transaction, nodeIdx int, node *EventTriggerNode) error {
	if eventAlreadySatisfied(r.events, node) {
		r.onEventObserved(txn, nodeIdx)
		return nil
	}

	sub, err := r.events.SubscribeWeak(node.EventID, node.Counter,
		func(sub EventSubscription, counter int64) {
			r.onEventOccurrence(txn, nodeIdx, sub, counter)
		})
	if err != nil {
		return err
	}

	r.logger.Debug("transaction subscribed to trigger event",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.EventID("eventId", uint64(node.EventID)),
		zap.Int64("counter", node.Counter))

	r.trackOrUninstall(txn, &eventTriggerRegistration{
		events: r.events,
		sub:    sub,
	})

	// the target may have been reached between checking the counter and
	// subscribing, in which case nobody will deliver it to us anymore
	if eventAlreadySatisfied(r.events, node) && r.events.UnsubscribeWeak(sub) {
		r.onEventObserved(txn, nodeIdx)
	}

	return nil
}

func (r *triggerRegistry) onEventOccurrence(txn *Transaction, nodeIdx int, sub EventSubscription, counter int64) {
	node := txn.nodes[nodeIdx].event
	if !eventCounterReached(node, counter) {
		return
	}

	// whoever removes the subscription owns the node
	if !r.events.UnsubscribeWeak(sub) {
		return
	}

	r.logger.Debug("trigger event occurred",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.EventID("eventId", uint64(node.EventID)),
		zap.Int64("counter", counter))

	r.onEventObserved(txn, nodeIdx)
}

// onEventObserved resolves an event node whose event has happened.  Without a
// precondition fence the node is satisfied.  Otherwise the node mirrors the
// precondition fence, waiting for it to be signaled if need be.
func (r *triggerRegistry) onEventObserved(txn *Transaction, nodeIdx int) {
	precondition := txn.nodes[nodeIdx].precondition
	if precondition == nil {
		txn.resolveNode(nodeIdx, ErrorCodeOK)
		return
	}

	// the transaction drops its precondition reference once it is decided,
	// at which point there is nothing left to resolve
	if !precondition.TryAcquire() {
		return
	}
	defer precondition.Release()

	cb, err := precondition.AddPollCallback(func(fence *Fence, status FenceStatus) {
		txn.resolveNode(nodeIdx, status.Code)
	})
	if err != nil {
		status := precondition.Status()

		r.logger.Debug("precondition fence already signaled",
			zaputils.TransactionID("txnId", uint64(txn.id)),
			zaputils.FenceID("fenceId", uint64(precondition.ID())),
			zaputils.FenceStatus("status", status.IsSignaled(), int32(status.Code)))

		txn.resolveNode(nodeIdx, status.Code)
		return
	}

	r.logger.Debug("transaction waiting on precondition fence",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.FenceID("fenceId", uint64(precondition.ID())))

	r.trackOrUninstall(txn, &pollTriggerRegistration{
		fence: precondition,
		cb:    cb,
	})
}
