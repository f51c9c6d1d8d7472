//go:generate moq -out mock_executor_test.go . Executor
//go:generate moq -out mock_eventregistry_test.go . EventRegistry

package fencex
