package fencex

import (
	"context"
	"time"

	"github.com/couchbase/fencex/contrib/buildversion"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	buildVersion string = buildversion.GetVersion("github.com/couchbase/fencex")
	meter               = otel.Meter("github.com/couchbase/fencex",
		metric.WithInstrumentationVersion(buildVersion))
	tracer = otel.Tracer("github.com/couchbase/fencex",
		trace.WithInstrumentationVersion(buildVersion))
)

var (
	fencesCreated, _            = meter.Int64Counter("fencex.fences_created")
	fencesSignaled, _           = meter.Int64Counter("fencex.fences_signaled")
	fencesReleasedUnsignaled, _ = meter.Int64Counter("fencex.fences_released_unsignaled")

	transactionsSubmitted, _ = meter.Int64Counter("fencex.transactions_submitted")
	transactionsDecided, _   = meter.Int64Counter("fencex.transactions_decided")

	completionFenceFailures, _ = meter.Int64Counter("fencex.completion_fence_failures")

	// triggerWaitDuration measures the time between a transaction being
	// submitted and its trigger condition being decided.
	triggerWaitDuration, _ = meter.Float64Histogram("fencex.trigger_wait_duration",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10))
)

var (
	signaledOkAttribs    = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", "ok")))
	signaledErrorAttribs = metric.WithAttributeSet(attribute.NewSet(attribute.String("status", "error")))

	decidedSuccessAttribs   = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "success")))
	decidedFailureAttribs   = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "failure")))
	decidedCancelledAttribs = metric.WithAttributeSet(attribute.NewSet(attribute.String("outcome", "cancelled")))
)

func recordFenceCreated() {
	fencesCreated.Add(context.Background(), 1)
}

func recordFenceSignaled(status FenceStatus) {
	if status.Code == ErrorCodeOK {
		fencesSignaled.Add(context.Background(), 1, signaledOkAttribs)
	} else {
		fencesSignaled.Add(context.Background(), 1, signaledErrorAttribs)
	}
}

func recordFenceReleasedUnsignaled() {
	fencesReleasedUnsignaled.Add(context.Background(), 1)
}

func recordTransactionSubmitted() {
	transactionsSubmitted.Add(context.Background(), 1)
}

func recordTransactionDecided(code ErrorCode, waited time.Duration) {
	ctx := context.Background()

	switch code {
	case ErrorCodeOK:
		transactionsDecided.Add(ctx, 1, decidedSuccessAttribs)
	case ErrorCodeCancelled:
		transactionsDecided.Add(ctx, 1, decidedCancelledAttribs)
	default:
		transactionsDecided.Add(ctx, 1, decidedFailureAttribs)
	}

	triggerWaitDuration.Record(ctx, waited.Seconds())
}

func recordCompletionFenceFailure() {
	completionFenceFailures.Add(context.Background(), 1)
}
