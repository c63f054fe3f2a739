package uringrt

import "testing"

func TestSchedulerFIFOOrder(t *testing.T) {
	s := newScheduler()
	s.spawn(1)
	s.spawn(2)
	s.spawn(3)

	for _, want := range []taskKey{1, 2, 3} {
		got, ok := s.fetchNext()
		if !ok || got != want {
			t.Fatalf("fetchNext() = %d, %v, want %d, true", got, ok, want)
		}
	}
	if _, ok := s.fetchNext(); ok {
		t.Fatal("fetchNext() on empty scheduler should report false")
	}
}

func TestSchedulerWakeIdempotent(t *testing.T) {
	s := newScheduler()
	s.spawn(1)

	// task 1 is already queued; waking it 1000 times must not duplicate it.
	for i := 0; i < 1000; i++ {
		s.wake(1)
	}
	if s.len() != 1 {
		t.Fatalf("len() = %d, want 1", s.len())
	}

	got, ok := s.fetchNext()
	if !ok || got != 1 {
		t.Fatalf("fetchNext() = %d, %v", got, ok)
	}
	if _, ok := s.fetchNext(); ok {
		t.Fatal("task 1 should only have been queued once")
	}
}

func TestSchedulerWakeAfterFetch(t *testing.T) {
	s := newScheduler()
	s.spawn(1)
	_, _ = s.fetchNext()

	// once fetched (and thus no longer a member), waking re-enqueues it.
	s.wake(1)
	if s.len() != 1 {
		t.Fatalf("len() = %d, want 1", s.len())
	}
}

func TestSchedulerDoubleSpawnPanics(t *testing.T) {
	s := newScheduler()
	s.spawn(1)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on double-spawn")
		}
		if _, ok := r.(*PanicError); !ok {
			t.Fatalf("expected *PanicError, got %T", r)
		}
	}()
	s.spawn(1)
}
