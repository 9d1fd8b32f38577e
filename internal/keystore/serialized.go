package keystore

import (
	"sync"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

// Serialized wraps a Store so that operations on the same identifier never
// overlap. Different identifiers proceed independently.
type Serialized struct {
	inner Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSerialized returns inner guarded by one mutex per identifier.
func NewSerialized(inner Store) *Serialized {
	return &Serialized{inner: inner, locks: make(map[string]*sync.Mutex)}
}

func (s *Serialized) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Serialized) Store(id string, key *krypto.Key) error {
	defer s.lock(id)()
	return s.inner.Store(id, key)
}

func (s *Serialized) Retrieve(id string) (*krypto.Key, error) {
	defer s.lock(id)()
	return s.inner.Retrieve(id)
}

func (s *Serialized) Delete(id string) error {
	defer s.lock(id)()
	return s.inner.Delete(id)
}
