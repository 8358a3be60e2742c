package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated by registerPrefix() below. ComputeRoot()
// iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount = registerPrefix("acct:")
	prefixToken   = registerPrefix("token:")
	prefixSale    = registerPrefix("sale:")
)

type stateSnapshot struct {
	dirty map[string][]byte
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-root computation.
// All methods are safe for concurrent use: query surfaces read the
// buffer on their own goroutines while the ledger applies operations.
type StateDB struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:    db,
		dirty: make(map[string][]byte),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	v, ok := s.dirty[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	s.dirty[key] = val
	s.mu.Unlock()
}

// ---- Account ----

// GetAccount returns the account at address. Unknown addresses read as
// zero-value accounts so recipients need no prior funding step.
func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- Token ----

func (s *StateDB) GetToken(id string) (*core.Token, error) {
	data, err := s.get(prefixToken + id)
	if err != nil {
		return nil, err
	}
	var t core.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *StateDB) SetToken(t *core.Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.set(prefixToken+t.ID, data)
	return nil
}

// ---- Sale ----

func (s *StateDB) GetSale(id string) (*core.Sale, error) {
	data, err := s.get(prefixSale + id)
	if err != nil {
		return nil, err
	}
	var sale core.Sale
	if err := json.Unmarshal(data, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *StateDB) SetSale(sale *core.Sale) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return err
	}
	s.set(prefixSale+sale.ID, data)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := stateSnapshot{dirty: make(map[string][]byte, len(s.dirty))}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved
// snapshot. The snapshot maps are deep-copied so that subsequent writes
// cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}

	s.dirty = dirty
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world
// state: all persisted entries under the known state prefixes merged
// with the current write buffer, sorted, length-prefix encoded, and
// hashed. It does not flush or modify state.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	s.mu.RLock()
	for k, v := range s.dirty {
		merged[k] = v
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// write batch and then clears it, discarding any saved snapshots.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}
