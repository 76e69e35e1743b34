package session

import "testing"

func TestStoreAbsenceMeansIdle(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("972545460223"); ok {
		t.Fatal("fresh store should have no state")
	}
}

func TestStoreSetOverwrites(t *testing.T) {
	s := NewStore()
	s.Set("972545460223", AwaitingImage{})
	s.Set("972545460223", AwaitingTextName{Buffer: "hello"})

	st, ok := s.Get("972545460223")
	if !ok {
		t.Fatal("state missing")
	}
	name, ok := st.(AwaitingTextName)
	if !ok {
		t.Fatalf("state = %T, want AwaitingTextName", st)
	}
	if name.Buffer != "hello" {
		t.Fatalf("buffer = %q", name.Buffer)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Set("a", AwaitingText{})
	s.Set("b", AwaitingImageSelection{})
	s.Clear("a")

	if _, ok := s.Get("a"); ok {
		t.Fatal("state for a should be cleared")
	}
	if _, ok := s.Get("b"); !ok {
		t.Fatal("state for b should survive")
	}
	// Clearing an absent entry is a no-op.
	s.Clear("a")
}
