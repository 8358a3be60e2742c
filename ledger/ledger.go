// Package ledger hosts the operation state machine: it verifies a
// signed operation, executes its handler against a state snapshot, and
// either commits and journals the result or reverts every effect. One
// operation runs at a time, so handlers never see interleaved reads and
// writes.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/events"
	"github.com/baileyhollabaugh/tokenvibes/journal"
)

const (
	maxOpAge    = int64(time.Hour)       // reject ops older than 1 hour
	maxOpFuture = int64(5 * time.Minute) // reject ops more than 5 min in the future
)

// Ledger applies operations to the state using the global Handler
// registry. Apply is safe for concurrent use; operations are serialized
// internally.
type Ledger struct {
	mu      sync.Mutex
	chainID string
	state   core.State
	journal *journal.Journal
	emitter *events.Emitter
	logger  *zap.Logger
}

// New creates a Ledger. A nil logger is replaced with a no-op logger.
func New(chainID string, state core.State, jrnl *journal.Journal, emitter *events.Emitter, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		chainID: chainID,
		state:   state,
		journal: jrnl,
		emitter: emitter,
		logger:  logger,
	}
}

// ChainID returns the network identifier operations must carry.
func (l *Ledger) ChainID() string { return l.chainID }

// Apply verifies and executes a single operation as one atomic unit of
// work: on any failure every effect, including the nonce increment and
// any token movements the handler performed, is rolled back and the
// error is returned to the caller. On success the state is committed
// and the operation is appended to the journal.
func (l *Ledger) Apply(op *core.Operation) (*journal.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if op.ChainID != l.chainID {
		return nil, fmt.Errorf("chain ID mismatch: got %q want %q", op.ChainID, l.chainID)
	}
	// Recompute the ID; never trust the client-provided value.
	op.ID = op.Hash()
	if err := op.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	now := time.Now().UnixNano()
	if now-op.Timestamp > maxOpAge {
		return nil, errors.New("operation expired")
	}
	if op.Timestamp-now > maxOpFuture {
		return nil, errors.New("operation timestamp too far in the future")
	}
	if _, err := l.journal.GetByID(op.ID); err == nil {
		return nil, fmt.Errorf("operation %s already applied", op.ID)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("journal lookup: %w", err)
	}

	seq := l.journal.NextSeq()

	snapID, err := l.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{
		State:     l.state,
		Op:        op,
		Seq:       seq,
		Timestamp: now,
	}
	if err := l.execute(ctx); err != nil {
		if revertErr := l.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after op failure: %w (revert: %v)", err, revertErr)
		}
		l.logger.Info("operation rejected",
			zap.String("op_id", op.ID),
			zap.String("type", string(op.Type)),
			zap.String("from", op.From),
			zap.Error(err))
		return nil, err
	}

	root := l.state.ComputeRoot()
	if err := l.state.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	entry, err := l.journal.Append(op, now, root)
	if err != nil {
		return nil, err
	}

	l.logger.Info("operation applied",
		zap.Uint64("seq", entry.Seq),
		zap.String("op_id", op.ID),
		zap.String("type", string(op.Type)),
		zap.String("from", op.From))

	// The operation is durable; deliver the handler's queued events,
	// then the applied notice.
	if l.emitter != nil {
		for _, ev := range ctx.events {
			l.emitter.Emit(ev)
		}
		l.emitter.Emit(events.Event{
			Type: events.EventOpApplied,
			OpID: op.ID,
			Seq:  entry.Seq,
			Data: map[string]any{"type": string(op.Type), "from": op.From},
		})
	}
	return entry, nil
}

// execute bumps the caller's nonce, then dispatches to the handler.
// Runs inside the snapshot, so a handler error unwinds the nonce too:
// failed operations do not consume nonces.
func (l *Ledger) execute(ctx *Context) error {
	op := ctx.Op
	acc, err := l.state.GetAccount(op.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != op.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, op.Nonce)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", op.From)
	}
	acc.Nonce++
	if err := l.state.SetAccount(acc); err != nil {
		return err
	}

	return globalRegistry.Execute(op.Type, ctx, op.Payload)
}
