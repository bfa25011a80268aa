// Package engine ties the persistent store (C1), the in-memory index
// (C2), the validator (C3), the mutator (C4), and the rewinder (C5)
// together behind a single writer lock, so that at most one mutating
// operation is ever in flight and readers never observe a mid-mutation
// state.
package engine

import (
	"fmt"
	"sync"

	"github.com/roastedledger/utxo-indexer/internal/ledger"
	"github.com/roastedledger/utxo-indexer/internal/logging"
	"github.com/roastedledger/utxo-indexer/internal/store"
	"github.com/roastedledger/utxo-indexer/internal/validator"
)

// Engine is the chain state engine: the in-memory UTXO/balance mirror
// plus the store handle it stays consistent with.
type Engine struct {
	mu sync.RWMutex

	st  *store.Store
	log *logging.Logger

	utxos         map[ledger.UTXOKey]ledger.Output
	balances      map[string]int64
	blocks        []ledger.BlockSummary
	currentHeight int64
}

// New builds an Engine over st, rebuilding its in-memory index from
// whatever blocks are already persisted (the journal is always the
// source of truth — the in-memory side is a pure function of it).
func New(st *store.Store, log *logging.Logger) (*Engine, error) {
	e := &Engine{
		st:  st,
		log: log,
	}
	blocks, err := st.LoadBlocks()
	if err != nil {
		return nil, err
	}
	e.rebuild(blocks)
	return e, nil
}

func (e *Engine) rebuild(blocks []*ledger.Block) {
	e.utxos = make(map[ledger.UTXOKey]ledger.Output)
	e.balances = make(map[string]int64)
	e.blocks = make([]ledger.BlockSummary, 0, len(blocks))
	e.currentHeight = 0

	for _, b := range blocks {
		e.applyInMemory(b)
		e.blocks = append(e.blocks, ledger.BlockSummary{ID: b.ID, Height: b.Height})
	}
}

// applyInMemory mirrors ApplyBlock's persisted effect onto the in-memory
// index: spend every referenced input, add every produced output, and
// update the height. Callers must hold mu for writing and must only call
// this with a block that has already been committed to the store (or, in
// rebuild, one already known-good from the journal).
func (e *Engine) applyInMemory(b *ledger.Block) {
	for _, tx := range b.Transactions {
		for _, in := range tx.Inputs {
			key := ledger.NewUTXOKey(in.TxID, in.Index)
			if out, ok := e.utxos[key]; ok {
				e.balances[out.Address] -= out.Value
				delete(e.utxos, key)
			}
		}
		for idx, out := range tx.Outputs {
			key := ledger.NewUTXOKey(tx.ID, idx)
			e.utxos[key] = out
			e.balances[out.Address] += out.Value
		}
	}
	e.currentHeight = b.Height
}

func (e *Engine) lookupUTXO(key ledger.UTXOKey) (ledger.Output, bool) {
	out, ok := e.utxos[key]
	return out, ok
}

// SubmitBlock validates block against the current state and, if accepted,
// applies it to the store and the in-memory index atomically under the
// writer lock. On rejection, nothing is mutated.
func (e *Engine) SubmitBlock(block *ledger.Block) (int64, *ledger.ChainError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cerr := validator.Validate(block, e.currentHeight, e.lookupUTXO); cerr != nil {
		e.log.Warnf("block rejected: kind=%s height=%d message=%s", cerr.Kind, block.Height, cerr.Message)
		return 0, cerr
	}

	if err := e.st.ApplyBlock(block); err != nil {
		e.log.Errorf("store apply failed: height=%d err=%v", block.Height, err)
		return 0, ledger.NewStoreError(err)
	}

	e.applyInMemory(block)
	e.blocks = append(e.blocks, ledger.BlockSummary{ID: block.ID, Height: block.Height})

	e.log.Infof("block accepted: id=%s height=%d txs=%d", block.ID, block.Height, len(block.Transactions))
	return block.Height, nil
}

// Rollback undoes every block above targetHeight, rebuilding the
// in-memory index from the surviving journal rather than reversing
// deltas in place.
func (e *Engine) Rollback(targetHeight int64) *ledger.ChainError {
	e.mu.Lock()
	defer e.mu.Unlock()

	if targetHeight < 1 {
		return ledger.NewInvalidHeightParam(fmt.Sprintf("%d", targetHeight))
	}
	if targetHeight > e.currentHeight {
		return ledger.NewTargetAboveHead(targetHeight, e.currentHeight)
	}

	if err := e.st.Rewind(targetHeight); err != nil {
		e.log.Errorf("store rewind failed: target=%d err=%v", targetHeight, err)
		return ledger.NewStoreError(err)
	}

	blocks, err := e.st.LoadBlocks()
	if err != nil {
		e.log.Errorf("reload after rewind failed: err=%v", err)
		return ledger.NewStoreError(err)
	}
	e.rebuild(blocks)

	e.log.Infof("rollback complete: height=%d", targetHeight)
	return nil
}

// Reset clears both the store and the in-memory index back to genesis.
func (e *Engine) Reset() *ledger.ChainError {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.st.Reset(); err != nil {
		e.log.Errorf("store reset failed: err=%v", err)
		return ledger.NewStoreError(err)
	}

	e.utxos = make(map[ledger.UTXOKey]ledger.Output)
	e.balances = make(map[string]int64)
	e.blocks = nil
	e.currentHeight = 0

	e.log.Infof("reset complete")
	return nil
}

// Balance returns address's current balance, or 0 if it has never held
// one.
func (e *Engine) Balance(address string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances[address]
}

// ListBlocks returns every accepted block's (id, height) in height order,
// along with the count and current height.
func (e *Engine) ListBlocks() ([]ledger.BlockSummary, int, int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ledger.BlockSummary, len(e.blocks))
	copy(out, e.blocks)
	return out, len(out), e.currentHeight
}

// Ping verifies the underlying store is reachable, used by the health
// endpoint. It does not need the writer lock: the store connection's
// liveness is independent of in-memory state.
func (e *Engine) Ping() error {
	return e.st.Ping()
}

// Height returns the current chain height.
func (e *Engine) Height() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentHeight
}

// Counts returns the number of known blocks, unspent outputs, and
// addresses with a balance entry (including entries that have dropped to
// zero) — used by the reset response.
func (e *Engine) Counts() (blocksCount, utxosCount, balancesCount int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.blocks), len(e.utxos), len(e.balances)
}
