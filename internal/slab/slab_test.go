package slab

import "testing"

func TestInsertGetRemove(t *testing.T) {
	s := New[string](0)

	k1 := s.Insert("a")
	k2 := s.Insert("b")

	if v, ok := s.Get(k1); !ok || *v != "a" {
		t.Fatalf("Get(k1) = %v, %v", v, ok)
	}
	if v, ok := s.Get(k2); !ok || *v != "b" {
		t.Fatalf("Get(k2) = %v, %v", v, ok)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	v, ok := s.Remove(k1)
	if !ok || v != "a" {
		t.Fatalf("Remove(k1) = %v, %v", v, ok)
	}
	if _, ok := s.Get(k1); ok {
		t.Fatalf("Get(k1) after Remove should fail")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestKeyReuse(t *testing.T) {
	s := New[int](0)

	k1 := s.Insert(1)
	_, _ = s.Remove(k1)
	k2 := s.Insert(2)

	if k1 != k2 {
		t.Fatalf("expected freed key %d to be reused, got %d", k1, k2)
	}
	if v, ok := s.Get(k2); !ok || *v != 2 {
		t.Fatalf("Get(k2) = %v, %v", v, ok)
	}
}

func TestMutateThroughPointer(t *testing.T) {
	s := New[int](0)
	k := s.Insert(10)

	v, ok := s.Get(k)
	if !ok {
		t.Fatal("Get failed")
	}
	*v = 20

	v2, _ := s.Get(k)
	if *v2 != 20 {
		t.Fatalf("mutation through pointer not observed: got %d", *v2)
	}
}

func TestRemoveUnknownKey(t *testing.T) {
	s := New[int](0)
	if _, ok := s.Remove(42); ok {
		t.Fatal("Remove of unknown key should report false")
	}
	if _, ok := s.Get(42); ok {
		t.Fatal("Get of unknown key should report false")
	}
}
