package fencex

import (
	"context"

	"github.com/couchbase/fencex/zaputils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// completionFences is the list of fences a transaction signals with its final
// outcome.  The list holds one reference per fence.
type completionFences struct {
	fences []*Fence
}

func (c *completionFences) attach(fence *Fence) {
	c.fences = append(c.fences, fence)
}

func (c *completionFences) take() []*Fence {
	fences := c.fences
	c.fences = nil
	return fences
}

func (c *completionFences) ids() []FenceID {
	ids := make([]FenceID, 0, len(c.fences))
	for _, fence := range c.fences {
		ids = append(ids, fence.ID())
	}
	return ids
}

// emitCompletionFences signals every fence with code, then releases them.  A
// fence which cannot be signaled is logged and reported but does not prevent
// the remaining fences from being signaled.
func (e *Engine) emitCompletionFences(txn *Transaction, fences []*Fence, code ErrorCode) error {
	if len(fences) == 0 {
		return nil
	}

	_, span := tracer.Start(context.Background(), "EmitCompletionFences")
	defer span.End()

	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int64("fencex.transaction_id", int64(txn.id)),
			attribute.Int("fencex.num_fences", len(fences)),
			attribute.Int("fencex.error_code", int(code)))
	}

	var errs error
	for _, fence := range fences {
		fenceCode := code
		if checkSignalCode(fenceCode, fence.Legacy()) != nil {
			// -1 reads back as unsignaled on legacy fences
			e.logger.Warn("completion code not representable by fence, signaling invalid instead",
				zaputils.TransactionID("txnId", uint64(txn.id)),
				zaputils.FenceID("fenceId", uint64(fence.ID())),
				zaputils.ErrorCode("code", int32(code)))
			fenceCode = ErrorCodeInvalid
		}

		err := fence.Signal(fenceCode)
		if err != nil {
			recordCompletionFenceFailure()
			e.logger.Warn("failed to signal completion fence",
				zaputils.TransactionID("txnId", uint64(txn.id)),
				zaputils.FenceID("fenceId", uint64(fence.ID())),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	for _, fence := range fences {
		fence.Release()
	}

	if errs != nil {
		span.SetStatus(codes.Error, errs.Error())
	}

	return errs
}
