package testutils

import (
	"flag"
	"log"
	"os"
	"strconv"
	"testing"

	"github.com/couchbase/fencex/contrib/leakcheck"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var TestOpts TestOptions

type TestOptions struct {
	// DebugLogging enables the engine's per-registration trace logging in
	// tests which construct engines through the test helpers.
	DebugLogging bool

	// StressIterations is how many times race tests repeat their scenario.
	StressIterations int
}

func envFlagBool(envName, name string, value bool, usage string) *bool {
	envValue := os.Getenv(envName)
	if envValue != "" {
		value = envValue == "1" || envValue == "true"
	}
	return flag.Bool(name, value, usage)
}

func envFlagInt(envName, name string, value int, usage string) *int {
	envValue := os.Getenv(envName)
	if envValue != "" {
		parsed, err := strconv.Atoi(envValue)
		if err == nil {
			value = parsed
		}
	}
	return flag.Int(name, value, usage)
}

var debugLogging = envFlagBool("FENCEXDEBUG", "fencex-debug", false,
	"Enables engine debug logging in tests")
var stressIterations = envFlagInt("FENCEXSTRESS", "fencex-stress", 200,
	"How many iterations race tests run for")

func SetupTests(m *testing.M) {
	flag.Parse()

	TestOpts.DebugLogging = *debugLogging
	TestOpts.StressIterations = *stressIterations
	if testing.Short() && TestOpts.StressIterations > 20 {
		TestOpts.StressIterations = 20
	}

	leakcheck.EnableAll()
	leakcheck.RecordGoroutineBaseline()

	result := m.Run()

	if !leakcheck.ReportAll() {
		log.Printf("Leak checks failed")
		result = 1
	}

	os.Exit(result)
}

func MakeTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return logger
}
