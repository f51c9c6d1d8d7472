package fencex

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type TransactionID uint64

type TransactionState uint8

const (
	// TransactionStatePending means the trigger condition is not decided yet.
	TransactionStatePending TransactionState = iota

	// TransactionStateDecided means the condition is decided but the
	// transaction has not been handed to the executor yet.
	TransactionStateDecided

	TransactionStateDispatched
	TransactionStateCompleted
)

func (s TransactionState) String() string {
	switch s {
	case TransactionStatePending:
		return "pending"
	case TransactionStateDecided:
		return "decided"
	case TransactionStateDispatched:
		return "dispatched"
	case TransactionStateCompleted:
		return "completed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Transaction is a unit of deferred work gated by a trigger condition.  The
// engine decides when it runs; the Executor decides what running means and
// reports back through Complete.
type Transaction struct {
	id             TransactionID
	owner          OwnerID
	name           string
	payload        any
	levelTriggered bool
	operator       TriggerOperator
	submitTime     time.Time
	engine         *Engine

	// nodes is fixed once the transaction is created.
	nodes []boundTriggerNode

	lock            sync.Mutex
	trigger         triggerState
	state           TransactionState
	armed           bool
	cancelRequested bool
	registrations   []triggerRegistration
	completion      completionFences
}

func (t *Transaction) ID() TransactionID {
	return t.id
}

func (t *Transaction) Owner() OwnerID {
	return t.owner
}

func (t *Transaction) Name() string {
	return t.name
}

// Payload returns the opaque value supplied at submission for the executor.
func (t *Transaction) Payload() any {
	return t.payload
}

func (t *Transaction) IsLevelTriggered() bool {
	return t.levelTriggered
}

func (t *Transaction) Operator() TriggerOperator {
	return t.operator
}

func (t *Transaction) NumTriggerNodes() int {
	return len(t.nodes)
}

func (t *Transaction) State() TransactionState {
	t.lock.Lock()
	state := t.state
	t.lock.Unlock()
	return state
}

func (t *Transaction) IsDecided() bool {
	t.lock.Lock()
	decided := t.trigger.decided
	t.lock.Unlock()
	return decided
}

// Result returns whether the trigger condition is decided and, if so, the
// recorded result code.  ErrorCodeOK means the transaction should run.
func (t *Transaction) Result() (bool, ErrorCode) {
	t.lock.Lock()
	decided, code := t.trigger.decided, t.trigger.resultCode
	t.lock.Unlock()
	return decided, code
}

// Err returns the decided result as an error, nil when undecided or successful.
func (t *Transaction) Err() error {
	decided, code := t.Result()
	if !decided {
		return nil
	}
	return code.Err()
}

func (t *Transaction) SignaledCount() int {
	t.lock.Lock()
	signaledCount := t.trigger.signaledCount
	t.lock.Unlock()
	return signaledCount
}

func (t *Transaction) CompletionFences() []FenceID {
	t.lock.Lock()
	ids := t.completion.ids()
	t.lock.Unlock()
	return ids
}

// Complete is called by the executor once the transaction has finished, or
// was skipped because its condition failed.  Every completion fence is
// signaled with code.  Signaling failures of individual fences do not stop
// the remaining ones from being signaled; they are returned combined.
func (t *Transaction) Complete(code ErrorCode) error {
	err := checkSignalCode(code, false)
	if err != nil {
		return err
	}

	t.lock.Lock()
	switch t.state {
	case TransactionStateCompleted:
		t.lock.Unlock()
		return ErrTransactionCompleted
	case TransactionStateDispatched:
	default:
		state := t.state
		t.lock.Unlock()
		return illegalStateError{fmt.Sprintf("cannot complete transaction %d in state %s", t.id, state)}
	}

	t.state = TransactionStateCompleted
	fences := t.completion.take()
	t.lock.Unlock()

	err = t.engine.emitCompletionFences(t, fences, code)
	t.engine.retireTransaction(t)

	return err
}

// resolveNode feeds the outcome of one trigger node to the evaluator.
func (t *Transaction) resolveNode(nodeIdx int, code ErrorCode) {
	t.lock.Lock()
	decided := t.trigger.resolve(nodeIdx, code)
	ready := decided && t.markDecidedLocked()
	t.lock.Unlock()

	if ready {
		t.engine.onTransactionReady(t)
	}
}

// cancel decides the transaction as cancelled.  It returns false if the
// transaction was already decided.
func (t *Transaction) cancel() bool {
	t.lock.Lock()
	decided := t.trigger.cancel()
	ready := decided && t.markDecidedLocked()
	t.lock.Unlock()

	if ready {
		t.engine.onTransactionReady(t)
	}
	return decided
}

func (t *Transaction) markDecidedLocked() bool {
	t.state = TransactionStateDecided
	return t.armed
}

// arm marks registration as finished.  A transaction decided while it was
// still being registered becomes ready here.
func (t *Transaction) arm() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.armed = true
	if t.cancelRequested && t.trigger.cancel() {
		t.state = TransactionStateDecided
	}

	return t.trigger.decided
}

// abort tears down a transaction whose registration failed.  It will never be
// dispatched and its completion fences are released without being signaled.
func (t *Transaction) abort() ([]triggerRegistration, []*Fence) {
	t.lock.Lock()
	t.trigger.cancel()
	t.armed = true
	t.state = TransactionStateCompleted
	registrations := t.takeRegistrationsLocked()
	fences := t.completion.take()
	t.lock.Unlock()

	return registrations, fences
}

// trackRegistration records an installed registration so that it can be
// removed once the transaction is decided or cancelled.  It is refused if
// that already happened, in which case the installer must uninstall it.
func (t *Transaction) trackRegistration(reg triggerRegistration) (bool, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.trigger.decided || t.cancelRequested {
		return false, t.cancelRequested
	}

	t.registrations = append(t.registrations, reg)
	return true, false
}

// requestCancel flags the transaction for cancellation and returns a snapshot
// of its registrations.  Nothing is returned for decided transactions.
func (t *Transaction) requestCancel() []triggerRegistration {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.trigger.decided {
		return nil
	}

	t.cancelRequested = true
	return slices.Clone(t.registrations)
}

func (t *Transaction) takeRegistrations() []triggerRegistration {
	t.lock.Lock()
	registrations := t.takeRegistrationsLocked()
	t.lock.Unlock()
	return registrations
}

func (t *Transaction) takeRegistrationsLocked() []triggerRegistration {
	registrations := t.registrations
	t.registrations = nil
	return registrations
}

func (t *Transaction) markDispatched() {
	t.lock.Lock()
	t.state = TransactionStateDispatched
	t.lock.Unlock()
}

func (t *Transaction) attachCompletionFence(fence *Fence) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.state >= TransactionStateDispatched {
		return invalidArgumentError{
			fmt.Sprintf("cannot attach completion fence to transaction %d in state %s", t.id, t.state),
		}
	}

	t.completion.attach(fence)
	return nil
}
