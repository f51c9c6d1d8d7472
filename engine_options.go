package fencex

import (
	"go.uber.org/zap"
)

type EngineOptions struct {
	Logger *zap.Logger

	// Executor receives decided transactions.  When nil, transactions are
	// completed immediately with their decided result.
	Executor Executor

	// EventRegistry supplies event counters for event trigger nodes.  When
	// nil, an EventRegistryMemory is created and can be retrieved through
	// Engine.Events.
	EventRegistry EventRegistry

	// MaxTriggerNodes bounds the size of trigger conditions.  Zero selects
	// MaxTriggerNodes.
	MaxTriggerNodes int

	// DebugLogging enables per-registration trace logging.
	DebugLogging bool
}

type CreateFenceOptions struct {
	// Legacy selects the legacy status encoding for ReadFenceStatus and
	// WriteFenceStatus.
	Legacy bool
}

type SubmitTransactionOptions struct {
	Owner     OwnerID
	Name      string
	Condition TriggerCondition

	// IsLevelTriggered permits trigger nodes which are already satisfied at
	// submission.  Edge triggered transactions may only reference satisfied
	// nodes when the condition consists of that single node.
	IsLevelTriggered bool

	CompletionFences []FenceID

	// CreateCompletionFence creates an extra completion fence for the
	// transaction, returned in SubmitTransactionResult.CompletionFence.
	CreateCompletionFence bool

	// LegacyFences applies to the placeholder and completion fences created
	// on behalf of the transaction.
	LegacyFences bool

	Payload any
}

type SubmitTransactionResult struct {
	Transaction *Transaction

	// PlaceholderFences holds the fences created for placeholder nodes, in
	// node order.
	PlaceholderFences []FenceID

	// CompletionFence is zero unless CreateCompletionFence was requested.
	CompletionFence FenceID
}
