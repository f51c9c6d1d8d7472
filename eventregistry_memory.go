package fencex

import (
	"sync"

	"golang.org/x/exp/slices"
)

type memoryEventSubscription struct {
	eventID       EventID
	targetCounter int64
	callback      EventCallback

	// active is guarded by the registry lock
	active bool
}

func (s *memoryEventSubscription) EventID() EventID {
	return s.eventID
}

// EventRegistryMemory is an in-process EventRegistry.  Occurrences are
// reported with Emit and delivered synchronously to subscribers.
type EventRegistryMemory struct {
	lock     sync.Mutex
	counters map[EventID]int64
	subs     map[EventID][]*memoryEventSubscription
}

var _ EventRegistry = (*EventRegistryMemory)(nil)

func NewEventRegistryMemory() *EventRegistryMemory {
	return &EventRegistryMemory{
		counters: make(map[EventID]int64),
		subs:     make(map[EventID][]*memoryEventSubscription),
	}
}

func (r *EventRegistryMemory) CurrentCounter(eventID EventID) (int64, bool) {
	r.lock.Lock()
	counter, ok := r.counters[eventID]
	r.lock.Unlock()
	return counter, ok
}

func (r *EventRegistryMemory) SubscribeWeak(
	eventID EventID,
	targetCounter int64,
	callback EventCallback,
) (EventSubscription, error) {
	if callback == nil {
		return nil, invalidArgumentError{"event subscription requires a callback"}
	}

	sub := &memoryEventSubscription{
		eventID:       eventID,
		targetCounter: targetCounter,
		callback:      callback,
		active:        true,
	}

	r.lock.Lock()
	r.subs[eventID] = append(r.subs[eventID], sub)
	r.lock.Unlock()

	return sub, nil
}

func (r *EventRegistryMemory) UnsubscribeWeak(sub EventSubscription) bool {
	memSub, ok := sub.(*memoryEventSubscription)
	if !ok || memSub == nil {
		return false
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if !memSub.active {
		return false
	}
	memSub.active = false

	subs := r.subs[memSub.eventID]
	subIdx := slices.Index(subs, memSub)
	if subIdx >= 0 {
		subs = slices.Delete(subs, subIdx, subIdx+1)
	}
	if len(subs) == 0 {
		delete(r.subs, memSub.eventID)
	} else {
		r.subs[memSub.eventID] = subs
	}

	return true
}

// Emit records an occurrence of eventID and notifies its subscribers.  It
// returns the new counter value.  Subscriptions removed before their turn in
// the delivery are skipped, but a concurrent UnsubscribeWeak can still race
// with a callback that is about to run.
func (r *EventRegistryMemory) Emit(eventID EventID) int64 {
	r.lock.Lock()
	counter := r.counters[eventID] + 1
	r.counters[eventID] = counter
	subs := slices.Clone(r.subs[eventID])
	r.lock.Unlock()

	for _, sub := range subs {
		if sub.targetCounter != EventCounterOnNextOccurrence && counter < sub.targetCounter {
			continue
		}

		r.lock.Lock()
		active := sub.active
		r.lock.Unlock()
		if !active {
			continue
		}

		sub.callback(sub, counter)
	}

	return counter
}

func (r *EventRegistryMemory) numSubscriptions(eventID EventID) int {
	r.lock.Lock()
	numSubs := len(r.subs[eventID])
	r.lock.Unlock()
	return numSubs
}
