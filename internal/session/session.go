// Package session tracks per-user wizard state. A user is either idle (no
// entry) or parked in exactly one awaiting state; each state carries only the
// payload its handler needs.
package session

import "sync"

// State is a closed set: only the Awaiting* types in this package implement
// it. Idle is represented by the absence of an entry.
type State interface{ sessionState() }

// AwaitingImage: the user picked "save image" and owes an image with a
// caption.
type AwaitingImage struct{}

// AwaitingText: the user picked "save text" and owes the text content.
type AwaitingText struct{}

// AwaitingTextName: the content arrived and sits in Buffer until the user
// names the file.
type AwaitingTextName struct{ Buffer string }

// AwaitingImageSelection: an image listing was shown and the user owes an
// ordinal.
type AwaitingImageSelection struct{}

// AwaitingTextSelection: a text listing was shown and the user owes an
// ordinal.
type AwaitingTextSelection struct{}

func (AwaitingImage) sessionState()          {}
func (AwaitingText) sessionState()           {}
func (AwaitingTextName) sessionState()       {}
func (AwaitingImageSelection) sessionState() {}
func (AwaitingTextSelection) sessionState()  {}

// Store keeps at most one state per identity. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	m  map[string]State
}

func NewStore() *Store {
	return &Store{m: map[string]State{}}
}

func (s *Store) Get(identity string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[identity]
	return st, ok
}

func (s *Store) Set(identity string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[identity] = st
}

func (s *Store) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, identity)
}
