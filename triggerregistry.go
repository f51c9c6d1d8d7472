package fencex

import (
	"sync"

	"github.com/couchbase/fencex/zaputils"
	"go.uber.org/zap"
)

// triggerRegistration is an installed hook through which a trigger node can
// be resolved: a pending entry on a fence, a weak event subscription or a
// poll callback on a precondition fence.  Whoever manages to uninstall it, or
// detach it in the case of fence signaling, owns the resolution of the node.
type triggerRegistration interface {
	uninstall() bool
}

type fenceTriggerRegistration struct {
	fence   *Fence
	owner   OwnerID
	txn     *Transaction
	nodeIdx int
}

func (r *fenceTriggerRegistration) uninstall() bool {
	return r.fence.removePendingTrigger(r.owner, r.txn, r.nodeIdx)
}

type eventTriggerRegistration struct {
	events EventRegistry
	sub    EventSubscription
}

func (r *eventTriggerRegistration) uninstall() bool {
	return r.events.UnsubscribeWeak(r.sub)
}

type pollTriggerRegistration struct {
	fence *Fence
	cb    *FencePollCallback
}

func (r *pollTriggerRegistration) uninstall() bool {
	return r.fence.RemovePollCallback(r.cb)
}

// triggerRegistry wires transactions to the fences and events they wait on,
// and indexes them by owner so that an owner's transactions can be cancelled
// without touching anyone else's.
type triggerRegistry struct {
	logger *zap.Logger
	events EventRegistry

	lock   sync.Mutex
	owners map[OwnerID]map[TransactionID]*Transaction
}

func newTriggerRegistry(logger *zap.Logger, events EventRegistry) *triggerRegistry {
	return &triggerRegistry{
		logger: logger,
		events: events,
		owners: make(map[OwnerID]map[TransactionID]*Transaction),
	}
}

func (r *triggerRegistry) addOwnerTransaction(txn *Transaction) {
	r.lock.Lock()
	txns := r.owners[txn.owner]
	if txns == nil {
		txns = make(map[TransactionID]*Transaction)
		r.owners[txn.owner] = txns
	}
	txns[txn.id] = txn
	r.lock.Unlock()
}

func (r *triggerRegistry) removeOwnerTransaction(txn *Transaction) {
	r.lock.Lock()
	txns := r.owners[txn.owner]
	delete(txns, txn.id)
	if len(txns) == 0 {
		delete(r.owners, txn.owner)
	}
	r.lock.Unlock()
}

func (r *triggerRegistry) takeOwner(owner OwnerID) []*Transaction {
	r.lock.Lock()
	txns := r.owners[owner]
	delete(r.owners, owner)
	r.lock.Unlock()

	txnList := make([]*Transaction, 0, len(txns))
	for _, txn := range txns {
		txnList = append(txnList, txn)
	}
	return txnList
}

func (r *triggerRegistry) ownerIDs() []OwnerID {
	r.lock.Lock()
	owners := make([]OwnerID, 0, len(r.owners))
	for owner := range r.owners {
		owners = append(owners, owner)
	}
	r.lock.Unlock()
	return owners
}

// trackOrUninstall hands an installed registration to its transaction.  If
// the transaction refuses it, the registration is removed again, and if this
// call removed it while the transaction was being cancelled, the transaction
// is cancelled here since nobody else can observe the node anymore.
func (r *triggerRegistry) trackOrUninstall(txn *Transaction, reg triggerRegistration) {
	accepted, cancelRequested := txn.trackRegistration(reg)
	if accepted {
		return
	}

	if reg.uninstall() && cancelRequested {
		txn.cancel()
	}
}

// register wires a single trigger node.  Nodes which are already decided are
// fed to the evaluator directly.
func (r *triggerRegistry) register(txn *Transaction, nodeIdx int) error {
	node := &txn.nodes[nodeIdx]

	if node.event != nil {
		return r.registerEventNode(txn, nodeIdx, node.event)
	}

	r.registerFenceNode(txn, nodeIdx, node.fence)
	return nil
}

func (r *triggerRegistry) registerFenceNode(txn *Transaction, nodeIdx int, fence *Fence) {
	pending := &pendingTrigger{
		txn:     txn,
		nodeIdx: nodeIdx,
	}

	status, installed := fence.addPendingTrigger(txn.owner, pending)
	if !installed {
		r.logger.Debug("trigger fence already signaled",
			zaputils.TransactionID("txnId", uint64(txn.id)),
			zaputils.FenceID("fenceId", uint64(fence.ID())),
			zaputils.FenceStatus("status", true, int32(status.Code)))

		txn.resolveNode(nodeIdx, status.Code)
		return
	}

	r.logger.Debug("transaction added to trigger fence",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.FenceID("fenceId", uint64(fence.ID())))

	r.trackOrUninstall(txn, &fenceTriggerRegistration{
		fence:   fence,
		owner:   txn.owner,
		txn:     txn,
		nodeIdx: nodeIdx,
	})
}

// cancelOwner cancels every undecided transaction registered by owner and
// returns how many were cancelled by this call.
func (r *triggerRegistry) cancelOwner(owner OwnerID) int {
	txns := r.takeOwner(owner)

	type otherRegistration struct {
		txn *Transaction
		reg triggerRegistration
	}

	fences := make(map[*Fence]struct{})
	var otherRegs []otherRegistration
	for _, txn := range txns {
		for _, reg := range txn.requestCancel() {
			if fenceReg, ok := reg.(*fenceTriggerRegistration); ok {
				fences[fenceReg.fence] = struct{}{}
			} else {
				otherRegs = append(otherRegs, otherRegistration{txn: txn, reg: reg})
			}
		}
	}

	numCancelled := 0

	for fence := range fences {
		for _, pending := range fence.detachOwnerTriggers(owner) {
			if pending.txn.cancel() {
				numCancelled++
			}
			fence.Release()
		}
	}

	for _, other := range otherRegs {
		if other.reg.uninstall() && other.txn.cancel() {
			numCancelled++
		}
	}

	r.logger.Debug("cancelled owner transactions",
		zaputils.OwnerID("owner", string(owner)),
		zap.Int("numTransactions", len(txns)),
		zap.Int("numCancelled", numCancelled))

	return numCancelled
}
