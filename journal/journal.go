// Package journal keeps an append-only log of applied operations,
// addressable by sequence number or operation ID. It is the ledger's
// audit trail: state can be reconstructed by replaying it in order.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/storage"
)

const (
	keyTip      = "jrnl:tip"
	prefixBySeq = "jrnl:seq:"
	prefixByID  = "jrnl:id:"
)

// Entry is one applied operation together with its position in the log.
type Entry struct {
	Seq       uint64          `json:"seq"`
	AppliedAt int64           `json:"applied_at"` // unix nanoseconds
	StateRoot string          `json:"state_root"` // root after applying
	Op        *core.Operation `json:"op"`
}

// Journal is a durable applied-operation log. Sequence numbers start at
// 1; 0 means the log is empty.
type Journal struct {
	mu  sync.RWMutex
	db  storage.DB
	seq uint64
}

// Open loads (or initialises) a Journal on db.
func Open(db storage.DB) (*Journal, error) {
	j := &Journal{db: db}
	val, err := db.Get([]byte(keyTip))
	if errors.Is(err, core.ErrNotFound) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal tip: %w", err)
	}
	if len(val) != 8 {
		return nil, fmt.Errorf("journal tip: malformed value (%d bytes)", len(val))
	}
	j.seq = binary.BigEndian.Uint64(val)
	return j, nil
}

// Seq returns the sequence of the most recently appended entry.
func (j *Journal) Seq() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.seq
}

// NextSeq returns the sequence the next appended entry will get.
func (j *Journal) NextSeq() uint64 {
	return j.Seq() + 1
}

// Append writes op as the next entry and returns it. The entry, the
// by-ID index and the tip pointer go in one atomic batch.
func (j *Journal) Append(op *core.Operation, appliedAt int64, stateRoot string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		Seq:       j.seq + 1,
		AppliedAt: appliedAt,
		StateRoot: stateRoot,
		Op:        op,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	var tip [8]byte
	binary.BigEndian.PutUint64(tip[:], entry.Seq)

	batch := j.db.NewBatch()
	batch.Set(seqKey(entry.Seq), data)
	batch.Set([]byte(prefixByID+op.ID), tip[:])
	batch.Set([]byte(keyTip), tip[:])
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("journal append: %w", err)
	}

	j.seq = entry.Seq
	return entry, nil
}

// GetBySeq returns the entry at seq.
func (j *Journal) GetBySeq(seq uint64) (*Entry, error) {
	data, err := j.db.Get(seqKey(seq))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID returns the entry for the given operation ID.
func (j *Journal) GetByID(opID string) (*Entry, error) {
	val, err := j.db.Get([]byte(prefixByID + opID))
	if err != nil {
		return nil, err
	}
	if len(val) != 8 {
		return nil, fmt.Errorf("journal id index: malformed value (%d bytes)", len(val))
	}
	return j.GetBySeq(binary.BigEndian.Uint64(val))
}

// seqKey encodes seq with fixed width so iterator order equals numeric
// order.
func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixBySeq, seq))
}
