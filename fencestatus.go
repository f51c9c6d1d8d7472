package fencex

import (
	"encoding/binary"
	"fmt"
)

type FenceState uint8

const (
	FenceStateUnsignaled FenceState = iota
	FenceStateSignaled
)

func (s FenceState) String() string {
	switch s {
	case FenceStateUnsignaled:
		return "unsignaled"
	case FenceStateSignaled:
		return "signaled"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// FenceStatus is a point-in-time snapshot of a fence.  Code is only
// meaningful once State is FenceStateSignaled.
type FenceStatus struct {
	State FenceState
	Code  ErrorCode
}

func signaledStatus(code ErrorCode) FenceStatus {
	return FenceStatus{State: FenceStateSignaled, Code: code}
}

func (s FenceStatus) IsSignaled() bool {
	return s.State == FenceStateSignaled
}

func (s FenceStatus) IsSuccess() bool {
	return s.State == FenceStateSignaled && s.Code == ErrorCodeOK
}

// Err returns nil for unsignaled or successfully signaled fences.
func (s FenceStatus) Err() error {
	if s.State != FenceStateSignaled {
		return nil
	}
	return s.Code.Err()
}

func (s FenceStatus) String() string {
	if s.State != FenceStateSignaled {
		return s.State.String()
	}
	if s.Code == ErrorCodeOK {
		return "signaled(ok)"
	}
	return fmt.Sprintf("signaled(%d)", s.Code)
}

// Status values as exchanged through the fence status buffer.
const (
	nativeStatusUnsignaled int32 = 0
	nativeStatusSuccess    int32 = 1

	legacyStatusUnsignaled int32 = -1
	legacyStatusSuccess    int32 = 0
	legacyStatusCancelled  int32 = 1
)

// fenceStatusBufferLen is the only accepted length for status reads and writes.
const fenceStatusBufferLen = 4

// EncodeFenceStatus converts a status into its integer form.  The native form
// is 0 for unsignaled, 1 for success and the negative error code otherwise.
// The legacy form is -1 for unsignaled, 0 for success, 1 for cancellation and
// the raw code otherwise.
func EncodeFenceStatus(status FenceStatus, legacy bool) int32 {
	if !legacy {
		if !status.IsSignaled() {
			return nativeStatusUnsignaled
		}
		if status.Code == ErrorCodeOK {
			return nativeStatusSuccess
		}
		return int32(status.Code)
	}

	if !status.IsSignaled() {
		return legacyStatusUnsignaled
	}
	switch status.Code {
	case ErrorCodeOK:
		return legacyStatusSuccess
	case ErrorCodeCancelled:
		return legacyStatusCancelled
	}
	return int32(status.Code)
}

// DecodeSignalCode converts a value written by a client into the code a fence
// should be signaled with.  Values which would read back as a different
// status are rejected.
func DecodeSignalCode(value int32, legacy bool) (ErrorCode, error) {
	if !legacy {
		if value > 0 {
			return 0, invalidArgumentError{
				fmt.Sprintf("native fence status must be 0 or a negative error code, got %d", value),
			}
		}
		return ErrorCode(value), nil
	}

	switch value {
	case legacyStatusUnsignaled:
		return 0, invalidArgumentError{"cannot signal a fence with the unsignaled status"}
	case legacyStatusSuccess:
		return ErrorCodeOK, nil
	case legacyStatusCancelled:
		return ErrorCodeCancelled, nil
	}
	if value > 0 {
		return 0, invalidArgumentError{
			fmt.Sprintf("legacy fence status must be 0, 1 or a negative error code, got %d", value),
		}
	}
	return ErrorCode(value), nil
}

// checkSignalCode reports whether a fence using the given encoding can carry
// code.  Failure codes are negative, and the legacy encoding reserves -1 for
// the unsignaled state.
func checkSignalCode(code ErrorCode, legacy bool) error {
	if code > 0 {
		return invalidArgumentError{fmt.Sprintf("error code must be 0 or negative, got %d", code)}
	}
	if legacy && int32(code) == legacyStatusUnsignaled {
		return invalidArgumentError{fmt.Sprintf("legacy fences cannot carry error code %d", code)}
	}
	return nil
}

func marshalFenceStatus(status FenceStatus, legacy bool) []byte {
	buf := make([]byte, fenceStatusBufferLen)
	binary.LittleEndian.PutUint32(buf, uint32(EncodeFenceStatus(status, legacy)))
	return buf
}

func unmarshalSignalCode(buf []byte, legacy bool) (ErrorCode, error) {
	if len(buf) != fenceStatusBufferLen {
		return 0, invalidArgumentError{
			fmt.Sprintf("status buffer must be %d bytes, got %d", fenceStatusBufferLen, len(buf)),
		}
	}
	return DecodeSignalCode(int32(binary.LittleEndian.Uint32(buf)), legacy)
}
