package fencex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFenceSignalOnce(t *testing.T) {
	fence := newFence(fenceOptions{ID: 1})
	defer fence.Release()

	assert.False(t, fence.IsSignaled())
	assert.Equal(t, FenceStatus{State: FenceStateUnsignaled}, fence.Status())

	err := fence.Signal(ErrorCode(-7))
	require.NoError(t, err)

	err = fence.Signal(ErrorCodeOK)
	require.ErrorIs(t, err, ErrAlreadySignaled)

	status := fence.Status()
	assert.True(t, status.IsSignaled())
	assert.False(t, status.IsSuccess())
	assert.Equal(t, ErrorCode(-7), status.Code)

	var propagatedErr PropagatedError
	require.ErrorAs(t, status.Err(), &propagatedErr)
	assert.Equal(t, ErrorCode(-7), propagatedErr.Code)
}

func TestFenceSignalOnceConcurrent(t *testing.T) {
	fence := newFence(fenceOptions{ID: 1})
	defer fence.Release()

	var numSignaled int
	var numFailed int
	var resultsLock sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(code ErrorCode) {
			defer wg.Done()

			err := fence.Signal(code)

			resultsLock.Lock()
			if err == nil {
				numSignaled++
			} else {
				assert.ErrorIs(t, err, ErrAlreadySignaled)
				numFailed++
			}
			resultsLock.Unlock()
		}(ErrorCode(-i))
	}
	wg.Wait()

	assert.Equal(t, 1, numSignaled)
	assert.Equal(t, 19, numFailed)
	assert.True(t, fence.IsSignaled())
}

func TestFenceWait(t *testing.T) {
	fence := newFence(fenceOptions{ID: 1})
	defer fence.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	status, err := fence.Wait(ctx)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, status.IsSignaled())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		assert.NoError(t, fence.Signal(ErrorCodeOK))
	}()

	status, err = fence.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsSuccess())

	wg.Wait()

	select {
	case <-fence.SignaledCh():
	default:
		t.Fatalf("signaled channel should be closed")
	}

	// waiting on a signaled fence never blocks, even with a dead context
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	status, err = fence.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsSuccess())
}

func TestFencePollCallback(t *testing.T) {
	fence := newFence(fenceOptions{ID: 1})
	defer fence.Release()

	var calls []FenceStatus
	cb, err := fence.AddPollCallback(func(f *Fence, status FenceStatus) {
		assert.Equal(t, fence, f)
		calls = append(calls, status)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), fence.refCount())

	require.NoError(t, fence.Signal(ErrorCodeCancelled))

	require.Len(t, calls, 1)
	assert.Equal(t, ErrorCodeCancelled, calls[0].Code)
	assert.Equal(t, int64(1), fence.refCount())

	// the callback was detached by the signal
	assert.False(t, fence.RemovePollCallback(cb))
	assert.Equal(t, int64(1), fence.refCount())

	_, err = fence.AddPollCallback(func(f *Fence, status FenceStatus) {
		t.Fatalf("callback should not be installed on a signaled fence")
	})
	require.ErrorIs(t, err, ErrAlreadySignaled)
	assert.Equal(t, int64(1), fence.refCount())
}

func TestFenceRemovePollCallback(t *testing.T) {
	fence := newFence(fenceOptions{ID: 1})
	defer fence.Release()

	cb, err := fence.AddPollCallback(func(f *Fence, status FenceStatus) {
		t.Fatalf("removed callback should not be invoked")
	})
	require.NoError(t, err)

	assert.True(t, fence.RemovePollCallback(cb))
	assert.False(t, fence.RemovePollCallback(cb))
	assert.Equal(t, int64(1), fence.refCount())

	require.NoError(t, fence.Signal(ErrorCodeOK))
}

func TestFenceRetire(t *testing.T) {
	var retired []FenceID
	fence := newFence(fenceOptions{
		ID: 9,
		OnRetire: func(f *Fence) {
			retired = append(retired, f.ID())
		},
	})

	require.True(t, fence.TryAcquire())
	require.NoError(t, fence.Signal(ErrorCodeOK))

	fence.Release()
	assert.Empty(t, retired)

	fence.Release()
	assert.Equal(t, []FenceID{9}, retired)

	assert.False(t, fence.TryAcquire())
	assert.Equal(t, int64(0), fence.refCount())
}

func TestFenceReleasedUnsignaled(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fence := newFence(fenceOptions{
		ID:     3,
		Logger: zap.New(core),
	})

	fence.Release()

	entries := logs.FilterMessage("fence released without being signaled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(3), entries[0].ContextMap()["fenceId"])
}

func TestFenceReleasedSignaledLogsNothing(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fence := newFence(fenceOptions{
		ID:     4,
		Logger: zap.New(core),
	})

	require.NoError(t, fence.Signal(ErrorCodeOK))
	fence.Release()

	assert.Zero(t, logs.Len())
}

func TestFenceSignalRejectsUnrepresentableCodes(t *testing.T) {
	native := newFence(fenceOptions{ID: 1})
	defer native.Release()
	legacy := newFence(fenceOptions{ID: 2, Legacy: true})
	defer legacy.Release()

	require.ErrorIs(t, native.Signal(ErrorCode(1)), ErrInvalidArgument)
	require.ErrorIs(t, legacy.Signal(ErrorCode(1)), ErrInvalidArgument)
	require.ErrorIs(t, legacy.Signal(ErrorCode(-1)), ErrInvalidArgument)
	assert.False(t, native.IsSignaled())
	assert.False(t, legacy.IsSignaled())

	require.NoError(t, native.Signal(ErrorCode(-1)))
	require.NoError(t, legacy.Signal(ErrorCodeCancelled))
}
