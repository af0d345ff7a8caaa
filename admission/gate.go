package admission

import (
	"sync/atomic"
)

// Gate bounds the number of concurrent model calls with a channel
// semaphore. Acquisition never blocks: a full gate is an immediate
// rejection, reported with a status snapshot.
type Gate struct {
	sem                  chan struct{}
	inFlight             atomic.Int64
	estimatedCallSeconds int
}

// GateStatus is the rejection payload snapshot.
type GateStatus struct {
	InFlight             int `json:"in_flight_count"`
	QueueLength          int `json:"queue_length"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds"`
}

// NewGate creates a gate admitting at most maxConcurrent holders.
// estimatedCallSeconds feeds the wait hint reported on rejection.
func NewGate(maxConcurrent, estimatedCallSeconds int) *Gate {
	return &Gate{
		sem:                  make(chan struct{}, maxConcurrent),
		estimatedCallSeconds: estimatedCallSeconds,
	}
}

// TryAcquire attempts to take a slot. On success it returns a release
// function that must be called exactly once, typically deferred so the
// slot is returned on success, error, and timeout alike.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	select {
	case g.sem <- struct{}{}:
		g.inFlight.Add(1)
		var released atomic.Bool
		return func() {
			if released.CompareAndSwap(false, true) {
				g.inFlight.Add(-1)
				<-g.sem
			}
		}, true
	default:
		return nil, false
	}
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Status returns a snapshot for rejection payloads. QueueLength is always
// zero: requests are rejected, not queued.
func (g *Gate) Status() GateStatus {
	inFlight := g.InFlight()
	return GateStatus{
		InFlight:             inFlight,
		QueueLength:          0,
		EstimatedWaitSeconds: inFlight * g.estimatedCallSeconds,
	}
}
