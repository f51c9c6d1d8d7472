package zaputils

import (
	"fmt"

	"go.uber.org/zap"
)

func FenceID(key string, id uint64) zap.Field {
	return zap.Uint64(key, id)
}

func TransactionID(key string, id uint64) zap.Field {
	return zap.Uint64(key, id)
}

func EventID(key string, id uint64) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%x", id))
}

func OwnerID(key string, owner string) zap.Field {
	return zap.String(key, owner)
}

type LoggableFenceStatus struct {
	Signaled bool
	Code     int32
}

func (s LoggableFenceStatus) String() string {
	if !s.Signaled {
		return "unsignaled"
	}
	if s.Code == 0 {
		return "signaled(ok)"
	}

	return fmt.Sprintf("signaled(%d)", s.Code)
}

func FenceStatus(key string, signaled bool, code int32) zap.Field {
	return zap.Stringer(key, LoggableFenceStatus{
		Signaled: signaled,
		Code:     code,
	})
}

func ErrorCode(key string, code int32) zap.Field {
	// an error code is just a signaled status as far as logs are concerned
	return FenceStatus(key, true, code)
}
