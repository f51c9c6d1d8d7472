package fencex

import (
	"github.com/couchbase/fencex/zaputils"
	"go.uber.org/zap"
)

// Executor runs transactions whose trigger condition has been decided.
// Dispatch is called exactly once per transaction, including transactions
// whose condition failed or which were cancelled, so that the executor can
// skip them.  The executor must eventually call Complete on the transaction.
//
// Dispatch is invoked synchronously from whichever call decided the
// condition, so it should hand long running work off rather than block.
type Executor interface {
	Dispatch(txn *Transaction)
}

type ExecutorFunc func(txn *Transaction)

func (f ExecutorFunc) Dispatch(txn *Transaction) {
	f(txn)
}

// passthroughExecutor completes every transaction with its decided result.
type passthroughExecutor struct {
	logger *zap.Logger
}

var _ Executor = (*passthroughExecutor)(nil)

func (e *passthroughExecutor) Dispatch(txn *Transaction) {
	_, code := txn.Result()

	err := txn.Complete(code)
	if err != nil {
		e.logger.Warn("failed to complete transaction",
			zaputils.TransactionID("txnId", uint64(txn.ID())),
			zaputils.ErrorCode("code", int32(code)),
			zap.Error(err))
	}
}
