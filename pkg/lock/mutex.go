//go:build !deadlock

package lock

import "sync"

// managerMutex guards all lock state of a Manager. Build with -tags deadlock
// to swap in a lock-order checking implementation.
type managerMutex = sync.Mutex
