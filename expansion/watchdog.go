package expansion

import "time"

// NeverTimeout is the sentinel timeout_ms value meaning "the watchdog
// never expires".
const NeverTimeout uint16 = 0xFFFF

// Watchdog implements C8: a monotonic tick counter reset by any
// well-formed host frame, driving the owning peripheral's outputs to
// their recorded safe-state values when it expires.
type Watchdog struct {
	timeoutMS uint16
	elapsedMS uint32
	expired   bool
}

// NewWatchdog returns a watchdog initially disabled (NeverTimeout).
func NewWatchdog() *Watchdog {
	return &Watchdog{timeoutMS: NeverTimeout}
}

// SetTimeout reprograms the timeout and clears any pending expiry, as a
// fresh configuration frame implicitly proves the host is present.
func (w *Watchdog) SetTimeout(ms uint16) {
	w.timeoutMS = ms
	w.elapsedMS = 0
	w.expired = false
}

// Feed resets the elapsed counter; called on every accepted host frame.
func (w *Watchdog) Feed() {
	w.elapsedMS = 0
	w.expired = false
}

// Tick advances the elapsed counter by elapsed and reports whether this
// call is the one that crosses the timeout threshold (so the caller
// applies the safe state exactly once per expiry, not on every
// subsequent tick).
func (w *Watchdog) Tick(elapsed time.Duration) bool {
	if w.timeoutMS == NeverTimeout || w.expired {
		w.elapsedMS += uint32(elapsed / time.Millisecond)
		return false
	}
	w.elapsedMS += uint32(elapsed / time.Millisecond)
	if w.elapsedMS >= uint32(w.timeoutMS) {
		w.expired = true
		return true
	}
	return false
}

// Expired reports whether the watchdog is currently past its timeout.
func (w *Watchdog) Expired() bool {
	return w.expired
}
