package admission

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGate_TryAcquireRelease(t *testing.T) {
	g := NewGate(2, 10)

	rel1, ok := g.TryAcquire()
	if !ok {
		t.Fatal("first acquire rejected")
	}
	rel2, ok := g.TryAcquire()
	if !ok {
		t.Fatal("second acquire rejected")
	}
	if _, ok := g.TryAcquire(); ok {
		t.Fatal("acquire beyond the cap succeeded")
	}
	if g.InFlight() != 2 {
		t.Errorf("InFlight = %d, want 2", g.InFlight())
	}

	rel1()
	if _, ok := g.TryAcquire(); !ok {
		t.Fatal("acquire rejected after a release")
	}
	rel2()
}

func TestGate_ReleaseIdempotent(t *testing.T) {
	g := NewGate(1, 10)

	rel, ok := g.TryAcquire()
	if !ok {
		t.Fatal("acquire rejected")
	}
	rel()
	rel() // second call must not free a slot twice

	if g.InFlight() != 0 {
		t.Errorf("InFlight = %d after double release, want 0", g.InFlight())
	}
	rel2, ok := g.TryAcquire()
	if !ok {
		t.Fatal("acquire rejected after release")
	}
	defer rel2()
	if _, ok := g.TryAcquire(); ok {
		t.Fatal("double release freed a phantom slot")
	}
}

// max_concurrent + k simultaneous holders: exactly max_concurrent succeed
// concurrently and the rest are rejected.
func TestGate_ConcurrentAdmission(t *testing.T) {
	const maxConcurrent = 3
	const extra = 4
	g := NewGate(maxConcurrent, 10)

	var admitted, rejected atomic.Int64
	hold := make(chan struct{})
	var started, done sync.WaitGroup

	for i := 0; i < maxConcurrent+extra; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			release, ok := g.TryAcquire()
			started.Done()
			if !ok {
				rejected.Add(1)
				return
			}
			admitted.Add(1)
			<-hold
			release()
		}()
	}

	started.Wait()
	if got := admitted.Load(); got != maxConcurrent {
		t.Errorf("admitted = %d, want %d", got, maxConcurrent)
	}
	if got := rejected.Load(); got != extra {
		t.Errorf("rejected = %d, want %d", got, extra)
	}
	close(hold)
	done.Wait()

	if g.InFlight() != 0 {
		t.Errorf("InFlight = %d after all released, want 0", g.InFlight())
	}
}

func TestGate_Status(t *testing.T) {
	g := NewGate(3, 10)
	rel, _ := g.TryAcquire()
	defer rel()

	status := g.Status()
	if status.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1", status.InFlight)
	}
	if status.QueueLength != 0 {
		t.Errorf("QueueLength = %d, want 0 (no queueing)", status.QueueLength)
	}
	if status.EstimatedWaitSeconds != 10 {
		t.Errorf("EstimatedWaitSeconds = %d, want 10", status.EstimatedWaitSeconds)
	}
}
