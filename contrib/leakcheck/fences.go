package leakcheck

import (
	"log"
	"runtime/debug"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/exp/slices"
)

var fenceTrackingEnabled = atomic.NewBool(false)
var trackedFencesLock sync.Mutex
var trackedFences []*FenceRecord

// FenceRecord remembers where a fence was created so that a fence whose last
// reference was never released can be reported.
type FenceRecord struct {
	FenceID    uint64
	stackTrace []byte
}

func EnableFenceTracking() {
	fenceTrackingEnabled.Store(true)
}

// TrackFence starts tracking a fence.  It returns nil when tracking is
// disabled; UntrackFence accepts nil.
func TrackFence(fenceID uint64) *FenceRecord {
	if !fenceTrackingEnabled.Load() {
		return nil
	}

	record := &FenceRecord{
		FenceID:    fenceID,
		stackTrace: debug.Stack(),
	}

	trackedFencesLock.Lock()
	trackedFences = append(trackedFences, record)
	trackedFencesLock.Unlock()

	return record
}

func UntrackFence(record *FenceRecord) {
	if record == nil {
		return
	}

	trackedFencesLock.Lock()
	recordIdx := slices.Index(trackedFences, record)
	if recordIdx >= 0 {
		trackedFences = slices.Delete(trackedFences, recordIdx, recordIdx+1)
	}
	trackedFencesLock.Unlock()
}

func NumTrackedFences() int {
	trackedFencesLock.Lock()
	numFences := len(trackedFences)
	trackedFencesLock.Unlock()
	return numFences
}

func ReportLeakedFences() bool {
	trackedFencesLock.Lock()
	defer trackedFencesLock.Unlock()

	if len(trackedFences) == 0 {
		log.Printf("No leaked fences")
		return true
	}

	log.Printf("Found %d leaked fences", len(trackedFences))
	for _, leakRecord := range trackedFences {
		log.Printf("Leaked fence %d created at: %s", leakRecord.FenceID, leakRecord.stackTrace)
	}

	return false
}
