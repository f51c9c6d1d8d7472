package fencex

import (
	"golang.org/x/exp/slices"
)

// OwnerID identifies the client on whose behalf transactions are registered.
// Cancellation is scoped to an owner.
type OwnerID string

// pendingTrigger is a back-reference from a fence to one trigger node of a
// transaction waiting on it.  The fence never owns the transaction.
type pendingTrigger struct {
	txn     *Transaction
	nodeIdx int
}

// fenceTriggerLists is the per-fence owner -> pending triggers multimap.  It
// is only ever accessed with the owning fence's lock held.
type fenceTriggerLists struct {
	lists map[OwnerID][]*pendingTrigger
}

func (l *fenceTriggerLists) add(owner OwnerID, pending *pendingTrigger) {
	if l.lists == nil {
		l.lists = make(map[OwnerID][]*pendingTrigger)
	}
	l.lists[owner] = append(l.lists[owner], pending)
}

func (l *fenceTriggerLists) detachOwner(owner OwnerID) []*pendingTrigger {
	list := l.lists[owner]
	delete(l.lists, owner)
	return list
}

func (l *fenceTriggerLists) detachAll() map[OwnerID][]*pendingTrigger {
	lists := l.lists
	l.lists = nil
	return lists
}

func (l *fenceTriggerLists) remove(owner OwnerID, txn *Transaction, nodeIdx int) bool {
	list := l.lists[owner]
	idx := slices.IndexFunc(list, func(pending *pendingTrigger) bool {
		return pending.txn == txn && pending.nodeIdx == nodeIdx
	})
	if idx < 0 {
		return false
	}

	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(l.lists, owner)
	} else {
		l.lists[owner] = list
	}
	return true
}

func (l *fenceTriggerLists) count() int {
	total := 0
	for _, list := range l.lists {
		total += len(list)
	}
	return total
}
