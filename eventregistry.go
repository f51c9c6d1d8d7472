package fencex

// EventSubscription is an opaque handle returned by EventRegistry.SubscribeWeak.
type EventSubscription interface {
	EventID() EventID
}

// EventCallback is invoked by an EventRegistry for occurrences of a subscribed
// event.  Callbacks must not block.
type EventCallback func(sub EventSubscription, counter int64)

// EventRegistry supplies per-event occurrence counters.  The engine only asks
// whether an event reached a counter and keeps weak subscriptions for events
// which have not yet happened.  Delivery ordering and coalescing are up to the
// implementation.  A delivery already in progress when UnsubscribeWeak returns
// true may still invoke the callback once more, so callbacks claim an
// occurrence by calling UnsubscribeWeak themselves and ignore it if that
// returns false.
type EventRegistry interface {
	// CurrentCounter returns the number of occurrences of eventID observed so
	// far, and whether the event was ever observed.
	CurrentCounter(eventID EventID) (int64, bool)

	// SubscribeWeak subscribes to occurrences of eventID whose counter is at
	// least targetCounter.  EventCounterOnNextOccurrence subscribes to every
	// future occurrence.
	SubscribeWeak(eventID EventID, targetCounter int64, callback EventCallback) (EventSubscription, error)

	// UnsubscribeWeak removes a subscription.  It returns true only for the
	// call which actually removed it.
	UnsubscribeWeak(sub EventSubscription) bool
}
