package leakcheck

import (
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/atomic"
)

// goroutineCleanupPeriod is how long goroutines get to finish their cleanup.
// Signal delivery never spawns goroutines, so anything still running after
// this long is a test that forgot to join its workers.
const goroutineCleanupPeriod = 1 * time.Second

var goroutineBaseline = atomic.NewInt64(1)

// RecordGoroutineBaseline captures the number of goroutines that are expected
// to still be running once all tests have finished.
func RecordGoroutineBaseline() {
	goroutineBaseline.Store(int64(runtime.NumGoroutine()))
}

func ReportLeakedGoroutines() bool {
	expectedGoroutineCount := int(goroutineBaseline.Load())

	var finalGoroutineCount int
	start := time.Now()
	for time.Since(start) <= goroutineCleanupPeriod {
		runtime.Gosched()

		finalGoroutineCount = runtime.NumGoroutine()
		if finalGoroutineCount <= expectedGoroutineCount {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	if finalGoroutineCount > expectedGoroutineCount {
		log.Printf("Detected a goroutine leak (%d goroutines > %d)", finalGoroutineCount, expectedGoroutineCount)
		_ = pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
		return false
	}

	log.Printf("No goroutines appear to have leaked (%d before >= %d after)", expectedGoroutineCount, finalGoroutineCount)
	return true
}
