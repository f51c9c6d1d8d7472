package fencex

import (
	"context"
	"sync"

	"github.com/couchbase/fencex/contrib/leakcheck"
	"github.com/couchbase/fencex/zaputils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

type FenceID uint64

// FencePollCallback is a weak subscription to a fence being signaled.  The
// callback runs at most once, outside of the fence lock.
type FencePollCallback struct {
	fn        func(fence *Fence, status FenceStatus)
	installed bool
}

// Fence is a one-shot synchronization primitive.  It starts unsignaled and
// transitions exactly once to a signaled status carrying an ErrorCode.
//
// Lifetime is governed by an explicit reference count: the fence table, every
// pending trigger entry, every poll callback and every transaction binding
// hold one reference each.  The fence retires once the last one is released.
type Fence struct {
	id       FenceID
	legacy   bool
	logger   *zap.Logger
	onRetire func(fence *Fence)

	refs       atomic.Int64
	leakRecord *leakcheck.FenceRecord

	// signaledCh is closed when the fence is signaled, it is never replaced.
	signaledCh chan struct{}

	lock          sync.Mutex
	status        FenceStatus
	triggerLists  fenceTriggerLists
	pollCallbacks []*FencePollCallback
}

type fenceOptions struct {
	ID       FenceID
	Legacy   bool
	Logger   *zap.Logger
	OnRetire func(fence *Fence)
}

// newFence returns an unsignaled fence holding a single reference which
// belongs to the caller.
func newFence(opts fenceOptions) *Fence {
	f := &Fence{
		id:         opts.ID,
		legacy:     opts.Legacy,
		logger:     loggerOrNop(opts.Logger),
		onRetire:   opts.OnRetire,
		signaledCh: make(chan struct{}),
	}
	f.refs.Store(1)
	f.leakRecord = leakcheck.TrackFence(uint64(opts.ID))

	recordFenceCreated()

	return f
}

func (f *Fence) ID() FenceID {
	return f.id
}

// Legacy reports whether the fence exchanges its status using the legacy encoding.
func (f *Fence) Legacy() bool {
	return f.legacy
}

func (f *Fence) Status() FenceStatus {
	f.lock.Lock()
	status := f.status
	f.lock.Unlock()
	return status
}

func (f *Fence) IsSignaled() bool {
	return f.Status().IsSignaled()
}

// SignaledCh returns a channel which is closed once the fence is signaled.
func (f *Fence) SignaledCh() <-chan struct{} {
	return f.signaledCh
}

// Signal records the outcome of the fence.  Only the first call succeeds; any
// later call returns ErrAlreadySignaled and leaves the status untouched.
// Codes the fence's status encoding cannot represent are rejected with
// ErrInvalidArgument.
func (f *Fence) Signal(code ErrorCode) error {
	err := checkSignalCode(code, f.legacy)
	if err != nil {
		return err
	}

	f.lock.Lock()

	if f.status.IsSignaled() {
		status := f.status
		f.lock.Unlock()
		return alreadySignaledError{FenceID: f.id, Status: status}
	}

	f.status = signaledStatus(code)
	status := f.status
	close(f.signaledCh)

	triggerLists := f.triggerLists.detachAll()
	pollCallbacks := f.pollCallbacks
	f.pollCallbacks = nil
	for _, cb := range pollCallbacks {
		cb.installed = false
	}

	f.lock.Unlock()

	recordFenceSignaled(status)
	f.logger.Debug("fence signaled",
		zaputils.FenceID("fenceId", uint64(f.id)),
		zaputils.FenceStatus("status", status.IsSignaled(), int32(status.Code)),
		zap.Int("pollCallbacks", len(pollCallbacks)),
		zap.Int("owners", len(triggerLists)))

	for _, cb := range pollCallbacks {
		cb.fn(f, status)
		f.Release()
	}

	for owner, pendingList := range triggerLists {
		for _, pending := range pendingList {
			pending.txn.resolveNode(pending.nodeIdx, status.Code)
			f.Release()
		}

		f.logger.Debug("fence triggered owner transactions",
			zaputils.FenceID("fenceId", uint64(f.id)),
			zaputils.OwnerID("owner", string(owner)),
			zap.Int("numTransactions", len(pendingList)))
	}

	return nil
}

// Wait blocks until the fence is signaled or ctx is done.
func (f *Fence) Wait(ctx context.Context) (FenceStatus, error) {
	select {
	case <-f.signaledCh:
		return f.Status(), nil
	default:
	}

	select {
	case <-f.signaledCh:
		return f.Status(), nil
	case <-ctx.Done():
		return f.Status(), ctx.Err()
	}
}

// TryAcquire takes an additional reference unless the fence already retired.
func (f *Fence) TryAcquire() bool {
	for {
		refs := f.refs.Load()
		if refs <= 0 {
			return false
		}
		if f.refs.CompareAndSwap(refs, refs+1) {
			return true
		}
	}
}

// Release drops a reference previously obtained from creation or TryAcquire.
func (f *Fence) Release() {
	refs := f.refs.Dec()
	if refs > 0 {
		return
	}
	if refs < 0 {
		f.logger.DPanic("fence released more times than it was acquired",
			zaputils.FenceID("fenceId", uint64(f.id)),
			zap.Int64("refs", refs))
		return
	}

	f.retire()
}

func (f *Fence) retire() {
	f.lock.Lock()
	status := f.status
	pendingCount := f.triggerLists.count()
	f.lock.Unlock()

	if !status.IsSignaled() {
		recordFenceReleasedUnsignaled()
		f.logger.Error("fence released without being signaled",
			zaputils.FenceID("fenceId", uint64(f.id)),
			zap.Int("pendingTriggers", pendingCount))
	}

	leakcheck.UntrackFence(f.leakRecord)

	if f.onRetire != nil {
		f.onRetire(f)
	}
}

// AddPollCallback installs fn to be called once the fence is signaled.  The
// caller must hold a reference for the duration of the call.  Installation
// fails with ErrAlreadySignaled if the fence is already signaled, in which
// case the status can be read directly.
func (f *Fence) AddPollCallback(fn func(fence *Fence, status FenceStatus)) (*FencePollCallback, error) {
	f.lock.Lock()
	if f.status.IsSignaled() {
		status := f.status
		f.lock.Unlock()
		return nil, alreadySignaledError{FenceID: f.id, Status: status}
	}

	cb := &FencePollCallback{
		fn:        fn,
		installed: true,
	}
	f.refs.Inc()
	f.pollCallbacks = append(f.pollCallbacks, cb)
	f.lock.Unlock()

	return cb, nil
}

// RemovePollCallback uninstalls cb.  It returns false if the callback was
// already detached by Signal, in which case it has run or is about to.
func (f *Fence) RemovePollCallback(cb *FencePollCallback) bool {
	f.lock.Lock()
	if !cb.installed {
		f.lock.Unlock()
		return false
	}

	cb.installed = false
	cbIdx := slices.Index(f.pollCallbacks, cb)
	if cbIdx >= 0 {
		f.pollCallbacks = slices.Delete(f.pollCallbacks, cbIdx, cbIdx+1)
	}
	f.lock.Unlock()

	f.Release()
	return true
}

// addPendingTrigger installs a trigger entry for owner.  If the fence is
// already signaled nothing is installed and the status is returned instead.
// An installed entry holds a fence reference until it is detached or removed.
func (f *Fence) addPendingTrigger(owner OwnerID, pending *pendingTrigger) (FenceStatus, bool) {
	f.lock.Lock()
	if f.status.IsSignaled() {
		status := f.status
		f.lock.Unlock()
		return status, false
	}

	f.refs.Inc()
	f.triggerLists.add(owner, pending)
	f.lock.Unlock()

	return FenceStatus{}, true
}

// detachOwnerTriggers removes every entry registered by owner.  The caller
// becomes responsible for feeding each entry and releasing one reference per
// entry.
func (f *Fence) detachOwnerTriggers(owner OwnerID) []*pendingTrigger {
	f.lock.Lock()
	pendingList := f.triggerLists.detachOwner(owner)
	f.lock.Unlock()
	return pendingList
}

// removePendingTrigger removes a single entry, releasing its reference.
func (f *Fence) removePendingTrigger(owner OwnerID, txn *Transaction, nodeIdx int) bool {
	f.lock.Lock()
	removed := f.triggerLists.remove(owner, txn, nodeIdx)
	f.lock.Unlock()

	if removed {
		f.Release()
	}
	return removed
}

func (f *Fence) pendingTriggerCount() int {
	f.lock.Lock()
	count := f.triggerLists.count()
	f.lock.Unlock()
	return count
}

func (f *Fence) refCount() int64 {
	return f.refs.Load()
}
