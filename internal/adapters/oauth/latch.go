package oauth

import "sync/atomic"

// Latch lets exactly one caller through.
type Latch struct {
	fired atomic.Bool
}

// TryFire reports whether this call is the first one.
func (l *Latch) TryFire() bool {
	return l.fired.CompareAndSwap(false, true)
}

func (l *Latch) Fired() bool {
	return l.fired.Load()
}
