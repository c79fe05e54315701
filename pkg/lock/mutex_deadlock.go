//go:build deadlock

package lock

import "github.com/sasha-s/go-deadlock"

// managerMutex reports lock-order inversions and long waits on the manager
// mutex.
type managerMutex = deadlock.Mutex
