//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

var (
	// maskLock stands in for the CPU interrupt mask: foreground critical
	// sections and the masked part of every handler serialize on it.
	maskLock sync.Mutex

	// handlerLock serializes simulated interrupt handlers, which never nest.
	handlerLock sync.Mutex
)

// disableInterrupts blocks simulated interrupts until restoreInterrupts
func disableInterrupts() State {
	maskLock.Lock()
	return 0
}

// restoreInterrupts re-enables simulated interrupts
func restoreInterrupts(state State) {
	maskLock.Unlock()
}

// enterHandler marks the start of a simulated interrupt handler
func enterHandler() {
	handlerLock.Lock()
}

// exitHandler marks the end of a simulated interrupt handler
func exitHandler() {
	handlerLock.Unlock()
}
