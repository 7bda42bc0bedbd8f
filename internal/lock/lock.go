// Package lock serializes mutations of a single parents list across requests
// and, with Redis, across processes.
package lock

import (
	"context"
	"fmt"
)

// Locker acquires an exclusive lock on key. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ListKey is the lock key guarding the membership set of one list.
func ListKey(listID uint) string {
	return fmt.Sprintf("lock:list:%d", listID)
}

// UserKey is the lock key guarding a user's move from no list to a list.
func UserKey(userID uint) string {
	return fmt.Sprintf("lock:user:%d", userID)
}
