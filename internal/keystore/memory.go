package keystore

import (
	"bytes"
	"errors"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/Hussein-Mazeh/atlas/krypto"
)

// Memory is an in-process Store for tests and ephemeral sessions.
// Entries are sealed in memguard enclaves rather than held as plain slices.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memguard.Enclave
	fail    map[string]error
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memguard.Enclave),
		fail:    make(map[string]error),
	}
}

// FailNext makes the next call of op ("store", "retrieve" or "delete") fail
// with a PersistenceError carrying code.
func (m *Memory) FailNext(op string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = &PersistenceError{Op: op, Code: code, Err: errors.New("injected failure")}
}

// PutRaw stores arbitrary bytes under id, bypassing length checks.
// It exists so tests can simulate a corrupted platform entry.
func (m *Memory) PutRaw(id string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memguard.NewEnclave(bytes.Clone(raw))
}

// Len reports how many entries are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Store(id string, key *krypto.Key) error {
	if err := validID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("store"); err != nil {
		return err
	}

	raw := key.Bytes()
	if len(raw) != krypto.KeySize {
		return &PersistenceError{Op: "store", Code: -1, Err: krypto.ErrInvalidKeyLength}
	}
	// NewEnclave wipes its argument, so seal a copy.
	m.entries[id] = memguard.NewEnclave(bytes.Clone(raw))
	return nil
}

func (m *Memory) Retrieve(id string) (*krypto.Key, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("retrieve"); err != nil {
		return nil, err
	}

	enclave, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if enclave == nil {
		return nil, ErrCorrupt
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, &PersistenceError{Op: "retrieve", Code: -1, Err: err}
	}
	defer buf.Destroy()

	return keyFromStored(bytes.Clone(buf.Bytes()))
}

func (m *Memory) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("delete"); err != nil {
		return err
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) injected(op string) error {
	err, ok := m.fail[op]
	if !ok {
		return nil
	}
	delete(m.fail, op)
	return err
}
