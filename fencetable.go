package fencex

import (
	"sync"
)

// fenceTable maps fence ids to fences.  Each entry holds the reference the
// fence was created with.
type fenceTable struct {
	lock   sync.Mutex
	fences map[FenceID]*Fence
}

func newFenceTable() *fenceTable {
	return &fenceTable{
		fences: make(map[FenceID]*Fence),
	}
}

func (t *fenceTable) insert(fence *Fence) {
	t.lock.Lock()
	t.fences[fence.ID()] = fence
	t.lock.Unlock()
}

// acquire looks up a fence and takes a reference on it, which the caller must
// release.
func (t *fenceTable) acquire(id FenceID) (*Fence, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	fence := t.fences[id]
	if fence == nil || !fence.TryAcquire() {
		return nil, fenceNotFoundError{FenceID: id}
	}

	return fence, nil
}

// remove drops the entry for id, handing its reference to the caller.
func (t *fenceTable) remove(id FenceID) (*Fence, error) {
	t.lock.Lock()
	fence := t.fences[id]
	delete(t.fences, id)
	t.lock.Unlock()

	if fence == nil {
		return nil, fenceNotFoundError{FenceID: id}
	}

	return fence, nil
}

func (t *fenceTable) takeAll() []*Fence {
	t.lock.Lock()
	fences := make([]*Fence, 0, len(t.fences))
	for _, fence := range t.fences {
		fences = append(fences, fence)
	}
	t.fences = make(map[FenceID]*Fence)
	t.lock.Unlock()

	return fences
}

func (t *fenceTable) len() int {
	t.lock.Lock()
	numFences := len(t.fences)
	t.lock.Unlock()
	return numFences
}
