package fencex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchbase/fencex/zaputils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Engine owns a set of fences and the transactions triggered by them.
type Engine struct {
	logger          *zap.Logger
	debugLogger     *zap.Logger
	executor        Executor
	events          EventRegistry
	maxTriggerNodes int

	fenceSeq atomic.Uint64
	txnSeq   atomic.Uint64

	fences   *fenceTable
	registry *triggerRegistry

	lock         sync.Mutex
	closed       bool
	transactions map[TransactionID]*Transaction
}

func NewEngine(opts *EngineOptions) (*Engine, error) {
	if opts == nil {
		opts = &EngineOptions{}
	}

	maxTriggerNodes := opts.MaxTriggerNodes
	if maxTriggerNodes == 0 {
		maxTriggerNodes = MaxTriggerNodes
	}
	if maxTriggerNodes < 1 || maxTriggerNodes > MaxTriggerNodes {
		return nil, invalidArgumentError{
			fmt.Sprintf("max trigger nodes must be between 1 and %d, got %d", MaxTriggerNodes, opts.MaxTriggerNodes),
		}
	}

	logger := loggerOrNop(opts.Logger).With(zap.String("engineId", uuid.NewString()[:8]))

	debugLogger := zap.NewNop()
	if opts.DebugLogging {
		debugLogger = logger
	}

	events := opts.EventRegistry
	if events == nil {
		events = NewEventRegistryMemory()
	}

	executor := opts.Executor
	if executor == nil {
		executor = &passthroughExecutor{
			logger: logger,
		}
	}

	e := &Engine{
		logger:          logger,
		debugLogger:     debugLogger,
		executor:        executor,
		events:          events,
		maxTriggerNodes: maxTriggerNodes,
		fences:          newFenceTable(),
		registry:        newTriggerRegistry(debugLogger, events),
		transactions:    make(map[TransactionID]*Transaction),
	}

	logger.Debug("engine created",
		zap.Int("maxTriggerNodes", maxTriggerNodes),
		zap.Bool("debugLogging", opts.DebugLogging))

	return e, nil
}

// Events returns the registry event trigger nodes are evaluated against.
func (e *Engine) Events() EventRegistry {
	return e.events
}

func (e *Engine) isClosed() bool {
	e.lock.Lock()
	closed := e.closed
	e.lock.Unlock()
	return closed
}

func (e *Engine) onFenceRetired(fence *Fence) {
	e.debugLogger.Debug("fence retired",
		zaputils.FenceID("fenceId", uint64(fence.ID())))
}

// createTableFence creates a fence whose creation reference is held by the
// fence table.
func (e *Engine) createTableFence(legacy bool) *Fence {
	fence := newFence(fenceOptions{
		ID:       FenceID(e.fenceSeq.Inc()),
		Legacy:   legacy,
		Logger:   e.logger,
		OnRetire: e.onFenceRetired,
	})
	e.fences.insert(fence)
	return fence
}

// discardTableFence cancels a fence created on behalf of a failed submission
// and drops it from the table.
func (e *Engine) discardTableFence(fence *Fence) {
	_ = fence.Signal(ErrorCodeCancelled)

	tableFence, err := e.fences.remove(fence.ID())
	if err == nil {
		tableFence.Release()
	}
}

func (e *Engine) CreateFence(opts *CreateFenceOptions) (FenceID, error) {
	if opts == nil {
		opts = &CreateFenceOptions{}
	}

	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return 0, ErrEngineClosed
	}
	fence := e.createTableFence(opts.Legacy)
	e.lock.Unlock()

	e.debugLogger.Debug("fence created",
		zaputils.FenceID("fenceId", uint64(fence.ID())),
		zap.Bool("legacy", opts.Legacy))

	return fence.ID(), nil
}

// CloseFence drops the engine's handle on a fence.  Transactions and poll
// callbacks still referencing the fence keep it alive until they release it.
func (e *Engine) CloseFence(id FenceID) error {
	fence, err := e.fences.remove(id)
	if err != nil {
		return errors.Wrapf(err, "failed to close fence %d", id)
	}

	fence.Release()
	return nil
}

// GetFence returns a referenced fence.  The caller must call Release on it
// once done.
func (e *Engine) GetFence(id FenceID) (*Fence, error) {
	fence, err := e.fences.acquire(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get fence %d", id)
	}

	return fence, nil
}

func (e *Engine) SignalFence(id FenceID, code ErrorCode) error {
	fence, err := e.GetFence(id)
	if err != nil {
		return err
	}
	defer fence.Release()

	return fence.Signal(code)
}

func (e *Engine) PollFence(id FenceID) (FenceStatus, error) {
	fence, err := e.GetFence(id)
	if err != nil {
		return FenceStatus{}, err
	}
	defer fence.Release()

	return fence.Status(), nil
}

// WaitFence blocks until the fence is signaled or ctx is done.
func (e *Engine) WaitFence(ctx context.Context, id FenceID) (FenceStatus, error) {
	fence, err := e.GetFence(id)
	if err != nil {
		return FenceStatus{}, err
	}
	defer fence.Release()

	return fence.Wait(ctx)
}

// ReadFenceStatus returns the encoded status of a fence as a 4 byte little
// endian buffer, in the encoding the fence was created with.
func (e *Engine) ReadFenceStatus(id FenceID) ([]byte, error) {
	fence, err := e.GetFence(id)
	if err != nil {
		return nil, err
	}
	defer fence.Release()

	return marshalFenceStatus(fence.Status(), fence.Legacy()), nil
}

// WriteFenceStatus signals a fence from a 4 byte little endian buffer holding
// the encoded signal code.
func (e *Engine) WriteFenceStatus(id FenceID, buf []byte) error {
	fence, err := e.GetFence(id)
	if err != nil {
		return err
	}
	defer fence.Release()

	code, err := unmarshalSignalCode(buf, fence.Legacy())
	if err != nil {
		return err
	}

	return fence.Signal(code)
}

// submissionBindings are the references taken while preparing a submission.
type submissionBindings struct {
	nodes             []boundTriggerNode
	completion        []*Fence
	created           []*Fence
	placeholderIDs    []FenceID
	completionFenceID FenceID
}

// release drops every reference taken for the submission.  Fences created
// on behalf of the submission are cancelled and dropped from the table.
func (b *submissionBindings) release(e *Engine) {
	for nodeIdx := range b.nodes {
		b.nodes[nodeIdx].releaseFences()
	}
	for _, fence := range b.completion {
		fence.Release()
	}
	for _, fence := range b.created {
		e.discardTableFence(fence)
	}
}

func (e *Engine) bindTriggerNodes(opts *SubmitTransactionOptions, b *submissionBindings) error {
	for nodeIdx, node := range opts.Condition.Nodes {
		switch node := node.(type) {
		case EventTriggerNode:
			bound := boundTriggerNode{
				event: &node,
			}
			if node.PreconditionFence != 0 {
				fence, err := e.fences.acquire(node.PreconditionFence)
				if err != nil {
					return errors.Wrapf(err, "failed to resolve precondition fence of node %d", nodeIdx)
				}
				bound.precondition = fence
			}
			b.nodes = append(b.nodes, bound)
		case FenceTriggerNode:
			fence, err := e.fences.acquire(node.Fence)
			if err != nil {
				return errors.Wrapf(err, "failed to resolve trigger fence of node %d", nodeIdx)
			}
			b.nodes = append(b.nodes, boundTriggerNode{
				fence: fence,
			})
		case FencePlaceholderTriggerNode:
			fence := e.createTableFence(opts.LegacyFences)
			fence.TryAcquire()
			b.created = append(b.created, fence)
			b.placeholderIDs = append(b.placeholderIDs, fence.ID())
			b.nodes = append(b.nodes, boundTriggerNode{
				fence: fence,
			})
		default:
			return invalidArgumentError{fmt.Sprintf("node %d has unsupported type %T", nodeIdx, node)}
		}
	}

	return nil
}

func (e *Engine) bindCompletionFences(opts *SubmitTransactionOptions, b *submissionBindings) error {
	for _, fenceID := range opts.CompletionFences {
		fence, err := e.fences.acquire(fenceID)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve completion fence")
		}
		b.completion = append(b.completion, fence)
	}

	if opts.CreateCompletionFence {
		fence := e.createTableFence(opts.LegacyFences)
		fence.TryAcquire()
		b.created = append(b.created, fence)
		b.completion = append(b.completion, fence)
		b.completionFenceID = fence.ID()
	}

	return nil
}

// isNodeSatisfied reports whether a bound node would resolve immediately.
func (e *Engine) isNodeSatisfied(node *boundTriggerNode) bool {
	if node.event != nil {
		if !eventAlreadySatisfied(e.events, node.event) {
			return false
		}
		return node.precondition == nil || node.precondition.IsSignaled()
	}
	return node.fence.IsSignaled()
}

// SubmitTransaction registers a transaction which is dispatched to the
// executor once its trigger condition is decided.  This may happen before
// SubmitTransaction returns.  Either the transaction is fully registered or
// every fence reference taken for it is released again.
func (e *Engine) SubmitTransaction(ctx context.Context, opts *SubmitTransactionOptions) (*SubmitTransactionResult, error) {
	_, span := tracer.Start(ctx, "SubmitTransaction",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	res, err := e.submitTransaction(opts, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return res, nil
}

func (e *Engine) submitTransaction(opts *SubmitTransactionOptions, span trace.Span) (*SubmitTransactionResult, error) {
	if opts == nil {
		return nil, invalidArgumentError{"must pass submit options"}
	}

	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("fencex.owner", string(opts.Owner)),
			attribute.String("fencex.transaction_name", opts.Name),
			attribute.String("fencex.operator", opts.Condition.Operator.String()),
			attribute.Int("fencex.num_nodes", len(opts.Condition.Nodes)))
	}

	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	err := opts.Condition.validate(e.maxTriggerNodes)
	if err != nil {
		return nil, err
	}

	b := &submissionBindings{}

	err = e.bindTriggerNodes(opts, b)
	if err != nil {
		b.release(e)
		return nil, err
	}

	if !opts.IsLevelTriggered && len(b.nodes) > 1 {
		for nodeIdx := range b.nodes {
			if e.isNodeSatisfied(&b.nodes[nodeIdx]) {
				b.release(e)
				return nil, invalidArgumentError{
					fmt.Sprintf("node %d is already satisfied and the transaction is not level triggered", nodeIdx),
				}
			}
		}
	}

	err = e.bindCompletionFences(opts, b)
	if err != nil {
		b.release(e)
		return nil, err
	}

	txn := &Transaction{
		id:             TransactionID(e.txnSeq.Inc()),
		owner:          opts.Owner,
		name:           opts.Name,
		payload:        opts.Payload,
		levelTriggered: opts.IsLevelTriggered,
		operator:       opts.Condition.Operator,
		submitTime:     time.Now(),
		engine:         e,
		nodes:          b.nodes,
		trigger:        newTriggerState(opts.Condition.Operator, len(b.nodes)),
		completion: completionFences{
			fences: b.completion,
		},
	}
	if txn.trigger.decided {
		txn.state = TransactionStateDecided
	}

	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		b.release(e)
		return nil, ErrEngineClosed
	}
	e.transactions[txn.id] = txn
	e.registry.addOwnerTransaction(txn)
	e.lock.Unlock()

	recordTransactionSubmitted()

	if span.IsRecording() {
		span.SetAttributes(attribute.Int64("fencex.transaction_id", int64(txn.id)))
	}

	e.debugLogger.Debug("transaction submitted",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.OwnerID("owner", string(txn.owner)),
		zap.String("name", txn.name),
		zap.Stringer("operator", txn.operator),
		zap.Int("numNodes", len(txn.nodes)),
		zap.Bool("levelTriggered", txn.levelTriggered))

	for nodeIdx := range txn.nodes {
		if txn.IsDecided() {
			break
		}

		err := e.registry.register(txn, nodeIdx)
		if err != nil {
			e.abortSubmission(txn, b)
			return nil, errors.Wrapf(err, "failed to register trigger node %d", nodeIdx)
		}
	}

	if txn.arm() {
		e.onTransactionReady(txn)
	}

	return &SubmitTransactionResult{
		Transaction:       txn,
		PlaceholderFences: b.placeholderIDs,
		CompletionFence:   b.completionFenceID,
	}, nil
}

func (e *Engine) abortSubmission(txn *Transaction, b *submissionBindings) {
	registrations, completion := txn.abort()
	for _, reg := range registrations {
		reg.uninstall()
	}

	e.removeTransaction(txn)

	// completion fences may have been attached since binding
	b.completion = completion
	b.release(e)

	e.logger.Debug("transaction submission aborted",
		zaputils.TransactionID("txnId", uint64(txn.id)))
}

// AttachCompletionFence adds a completion fence to a transaction which has
// not been dispatched yet.
func (e *Engine) AttachCompletionFence(txnID TransactionID, fenceID FenceID) error {
	txn, err := e.Transaction(txnID)
	if err != nil {
		return err
	}

	fence, err := e.GetFence(fenceID)
	if err != nil {
		return err
	}

	err = txn.attachCompletionFence(fence)
	if err != nil {
		fence.Release()
		return err
	}

	return nil
}

// Transaction returns a transaction which has not completed yet.
func (e *Engine) Transaction(id TransactionID) (*Transaction, error) {
	e.lock.Lock()
	txn := e.transactions[id]
	e.lock.Unlock()

	if txn == nil {
		return nil, errors.Wrapf(ErrTransactionNotFound, "transaction %d", id)
	}

	return txn, nil
}

// CancelTransactionsForOwner cancels every undecided transaction of owner.
// Cancelled transactions are still dispatched to the executor with
// ErrorCodeCancelled, and report it to their completion fences.  It returns
// the number of transactions cancelled by this call.
func (e *Engine) CancelTransactionsForOwner(owner OwnerID) int {
	return e.registry.cancelOwner(owner)
}

// Close cancels all outstanding transactions and drops the engine's handles
// on its fences, signaling any unsignaled fence as cancelled.  Further fence
// creation and transaction submission fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		return ErrEngineClosed
	}
	e.closed = true
	e.lock.Unlock()

	numCancelled := 0
	for _, owner := range e.registry.ownerIDs() {
		numCancelled += e.registry.cancelOwner(owner)
	}

	fences := e.fences.takeAll()
	for _, fence := range fences {
		_ = fence.Signal(ErrorCodeCancelled)
		fence.Release()
	}

	e.logger.Debug("engine closed",
		zap.Int("numCancelled", numCancelled),
		zap.Int("numFences", len(fences)))

	return nil
}

// onTransactionReady runs exactly once per transaction, once its condition is
// decided and its registration has finished.
func (e *Engine) onTransactionReady(txn *Transaction) {
	for _, reg := range txn.takeRegistrations() {
		reg.uninstall()
	}
	for nodeIdx := range txn.nodes {
		txn.nodes[nodeIdx].releaseFences()
	}

	_, code := txn.Result()
	recordTransactionDecided(code, time.Since(txn.submitTime))

	e.debugLogger.Debug("transaction trigger decided",
		zaputils.TransactionID("txnId", uint64(txn.id)),
		zaputils.ErrorCode("result", int32(code)),
		zap.Int("signaledCount", txn.SignaledCount()))

	txn.markDispatched()
	e.executor.Dispatch(txn)
}

func (e *Engine) removeTransaction(txn *Transaction) {
	e.lock.Lock()
	delete(e.transactions, txn.id)
	e.lock.Unlock()

	e.registry.removeOwnerTransaction(txn)
}

func (e *Engine) retireTransaction(txn *Transaction) {
	e.removeTransaction(txn)

	e.debugLogger.Debug("transaction retired",
		zaputils.TransactionID("txnId", uint64(txn.id)))
}
