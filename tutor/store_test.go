package tutor

import (
	"sync"
	"testing"
	"time"
)

func testStore(ttl time.Duration) *Store {
	return NewStore(StoreConfig{TTL: ttl, SweepInterval: time.Minute}, nil)
}

func TestStore_AcquireCreatesWithDefaults(t *testing.T) {
	s := testStore(time.Hour)

	state, release := s.Acquire("s1", "police_officer")
	defer release()

	if state.Profile != ProfilePoliceOfficer {
		t.Errorf("Profile = %v, want police_officer", state.Profile)
	}
	if state.Scaffolding != HighSupport {
		t.Errorf("Scaffolding = %v, want high_support", state.Scaffolding)
	}
	if state.KnowledgeLevel != 1 {
		t.Errorf("KnowledgeLevel = %d, want 1", state.KnowledgeLevel)
	}
}

func TestStore_UnknownProfileHintDefaultsToGeneral(t *testing.T) {
	s := testStore(time.Hour)

	state, release := s.Acquire("s1", "astronaut")
	release()

	if state.Profile != ProfileGeneral {
		t.Errorf("Profile = %v, want general", state.Profile)
	}
}

func TestStore_SameSessionSerialized(t *testing.T) {
	s := testStore(time.Hour)

	state, release := s.Acquire("s1", "")

	acquired := make(chan struct{})
	go func() {
		st, rel := s.Acquire("s1", "")
		st.CurrentTopic = "second"
		rel()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire completed while first still held the session")
	case <-time.After(50 * time.Millisecond):
	}

	state.CurrentTopic = "first"
	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never completed after release")
	}
}

func TestStore_ConcurrentDistinctSessions(t *testing.T) {
	s := testStore(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state, release := s.Acquire(string(rune('a'+n%10)), "")
			state.KnowledgeLevel = 1 + n%5
			release()
		}(i)
	}
	wg.Wait()

	if got := s.Count(); got != 10 {
		t.Errorf("Count = %d, want 10", got)
	}
}

func TestStore_ResetPreservesProfileAndHistory(t *testing.T) {
	s := testStore(time.Hour)

	state, release := s.Acquire("s1", "cj_student")
	state.LearningPlan = []string{"A", "B"}
	state.StepCompletion = []bool{true, false}
	state.CurrentPlanStep = 1
	state.LastQuestion = "What is malware?"
	state.LearningObjective = "Understand malware"
	state.History = append(state.History, TurnRecord{UserInput: "hi"})
	release()

	if !s.Reset("s1", "phishing") {
		t.Fatal("Reset returned false for existing session")
	}

	state, release = s.Acquire("s1", "")
	defer release()
	if state.Profile != ProfileCJStudent {
		t.Errorf("Profile = %v after reset, want cj_student", state.Profile)
	}
	if len(state.History) != 1 {
		t.Errorf("History length = %d after reset, want 1", len(state.History))
	}
	if state.HasPlan() || state.LastQuestion != "" || state.LearningObjective != "" {
		t.Errorf("plan state not cleared: plan=%v lastQ=%q objective=%q",
			state.LearningPlan, state.LastQuestion, state.LearningObjective)
	}
	if state.CurrentTopic != "phishing" {
		t.Errorf("CurrentTopic = %q, want phishing", state.CurrentTopic)
	}
}

func TestStore_ResetMissingSession(t *testing.T) {
	s := testStore(time.Hour)
	if s.Reset("nope", "") {
		t.Error("Reset returned true for missing session")
	}
}

func TestStore_SetProfile(t *testing.T) {
	s := testStore(time.Hour)

	if s.SetProfile("s1", ProfileCJStudent) {
		t.Error("SetProfile returned true for missing session")
	}

	_, release := s.Acquire("s1", "")
	release()

	if !s.SetProfile("s1", ProfileCJStudent) {
		t.Fatal("SetProfile returned false for existing session")
	}
	snap, ok := s.Snapshot("s1")
	if !ok || snap.Profile != ProfileCJStudent {
		t.Errorf("Snapshot profile = %v, want cj_student", snap.Profile)
	}
}

func TestStore_EvictIdle(t *testing.T) {
	s := testStore(time.Hour)
	current := time.Now()
	s.now = func() time.Time { return current }

	_, release := s.Acquire("old", "")
	release()

	current = current.Add(2 * time.Hour)
	_, release = s.Acquire("fresh", "")
	release()

	if evicted := s.evictIdle(); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if _, ok := s.Snapshot("old"); ok {
		t.Error("idle session survived eviction")
	}
	if _, ok := s.Snapshot("fresh"); !ok {
		t.Error("fresh session was evicted")
	}
}

func TestStore_EvictSkipsInFlightTurn(t *testing.T) {
	s := testStore(time.Hour)
	current := time.Now()
	s.now = func() time.Time { return current }

	_, release := s.Acquire("busy", "")
	current = current.Add(2 * time.Hour)

	if evicted := s.evictIdle(); evicted != 0 {
		t.Fatalf("evicted = %d with a turn in flight, want 0", evicted)
	}
	release()
}

func TestStore_Delete(t *testing.T) {
	s := testStore(time.Hour)
	_, release := s.Acquire("s1", "")
	release()

	if !s.Delete("s1") {
		t.Fatal("Delete returned false for existing session")
	}
	if s.Delete("s1") {
		t.Error("Delete returned true for already-deleted session")
	}
}
