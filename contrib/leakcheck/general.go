package leakcheck

func EnableAll() {
	EnableFenceTracking()
}

func ReportAll() bool {
	testsPassed := true
	if !ReportLeakedFences() {
		testsPassed = false
	}
	if !ReportLeakedGoroutines() {
		testsPassed = false
	}
	return testsPassed
}
