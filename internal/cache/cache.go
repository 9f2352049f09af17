package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// SetNX stores val only when key is absent. ok reports whether it did.
	SetNX(ctx context.Context, key, val string, ttl time.Duration) (ok bool, err error)
	// CompareAndDelete removes key only while it still holds val.
	CompareAndDelete(ctx context.Context, key, val string) (deleted bool, err error)
}
