package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/roastedledger/utxo-indexer/internal/ledger"
)

// ApplyBlock persists an already-validated block: a blocks row, a
// transactions row per transaction, an inputs row (and a spent-flag
// update) per input, and an outputs row per output, followed by a
// balance delta upsert per address touched. Everything runs in one
// transaction; any failure rolls the whole block back and leaves the
// store exactly as it was before the call.
func (s *Store) ApplyBlock(block *ledger.Block) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`INSERT INTO blocks (id, height) VALUES (?, ?)`, block.ID, block.Height); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}

	deltas := make(map[string]int64)
	// spent tracks which distinct outputs have already been charged
	// against deltas in this block. spec.md §4.4 step 4 subtracts each
	// spent output's value once — not once per input reference to it —
	// so a block whose checks (deliberately) don't reject a UTXO
	// referenced by more than one input still debits it only once here,
	// keeping this in agreement with the in-memory mirror's map-delete
	// semantics in internal/engine.
	spent := make(map[ledger.UTXOKey]bool)

	for txOrder, t := range block.Transactions {
		if _, err = tx.Exec(`INSERT INTO transactions (id, block_id, tx_order) VALUES (?, ?, ?)`, t.ID, block.ID, txOrder); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}

		for inOrder, in := range t.Inputs {
			if _, err = tx.Exec(
				`INSERT INTO inputs (tx_id, spent_utxo_txid, spent_utxo_index, input_order) VALUES (?, ?, ?, ?)`,
				t.ID, in.TxID, in.Index, inOrder,
			); err != nil {
				return fmt.Errorf("insert input for %s: %w", t.ID, err)
			}

			key := ledger.NewUTXOKey(in.TxID, in.Index)
			if spent[key] {
				continue
			}
			spent[key] = true

			var address string
			var value int64
			row := tx.QueryRow(`SELECT address, value FROM outputs WHERE txid = ? AND idx = ?`, in.TxID, in.Index)
			if err = row.Scan(&address, &value); err != nil {
				return fmt.Errorf("lookup spent output %s:%d: %w", in.TxID, in.Index, err)
			}
			if _, err = tx.Exec(`UPDATE outputs SET is_spent = 1 WHERE txid = ? AND idx = ?`, in.TxID, in.Index); err != nil {
				return fmt.Errorf("mark output spent %s:%d: %w", in.TxID, in.Index, err)
			}
			deltas[address] -= value
		}

		for idx, out := range t.Outputs {
			if _, err = tx.Exec(
				`INSERT INTO outputs (txid, idx, address, value, is_spent) VALUES (?, ?, ?, ?, 0)`,
				t.ID, idx, out.Address, out.Value,
			); err != nil {
				return fmt.Errorf("insert output %s:%d: %w", t.ID, idx, err)
			}
			deltas[out.Address] += out.Value
		}
	}

	if err = upsertBalanceDeltas(tx, deltas); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	return nil
}

func upsertBalanceDeltas(tx *sql.Tx, deltas map[string]int64) error {
	for address, delta := range deltas {
		if delta == 0 {
			continue
		}
		if _, err := tx.Exec(
			`INSERT INTO balances (address, balance) VALUES (?, ?)
			 ON CONFLICT(address) DO UPDATE SET balance = balance + excluded.balance`,
			address, delta,
		); err != nil {
			return fmt.Errorf("update balance for %s: %w", address, err)
		}
	}
	return nil
}

// Rewind undoes every block above targetHeight in one transaction:
// outputs spent by a doomed transaction are resurrected, outputs produced
// by doomed transactions disappear, doomed blocks are deleted (cascading
// to their transactions and inputs), and balances are recomputed from
// scratch off the surviving outputs. It does not touch any in-memory
// state — callers rebuild that themselves from LoadBlocks.
func (s *Store) Rewind(targetHeight int64) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	rows, err := tx.Query(`
		SELECT t.id FROM transactions t
		JOIN blocks b ON b.id = t.block_id
		WHERE b.height > ?`, targetHeight)
	if err != nil {
		return fmt.Errorf("collect doomed transactions: %w", err)
	}
	var doomed []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan doomed transaction: %w", err)
		}
		doomed = append(doomed, id)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate doomed transactions: %w", err)
	}
	rows.Close()

	if len(doomed) > 0 {
		placeholders, args := inClause(doomed)

		if _, err = tx.Exec(fmt.Sprintf(`
			UPDATE outputs SET is_spent = 0
			WHERE (txid, idx) IN (
				SELECT spent_utxo_txid, spent_utxo_index FROM inputs WHERE tx_id IN (%s)
			)`, placeholders), args...); err != nil {
			return fmt.Errorf("resurrect spent outputs: %w", err)
		}

		if _, err = tx.Exec(fmt.Sprintf(`DELETE FROM outputs WHERE txid IN (%s)`, placeholders), args...); err != nil {
			return fmt.Errorf("delete doomed outputs: %w", err)
		}
	}

	if _, err = tx.Exec(`DELETE FROM blocks WHERE height > ?`, targetHeight); err != nil {
		return fmt.Errorf("delete doomed blocks: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM balances`); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}
	if _, err = tx.Exec(`
		INSERT INTO balances (address, balance)
		SELECT address, SUM(value) FROM outputs WHERE is_spent = 0 GROUP BY address`); err != nil {
		return fmt.Errorf("recompute balances: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rewind: %w", err)
	}
	return nil
}

// Reset deletes every row from all five relations in one transaction,
// respecting the referential order (children before parents).
func (s *Store) Reset() (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"outputs", "inputs", "transactions", "blocks", "balances"} {
		if _, err = tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// Balance returns the stored balance for address, or 0 if it has no row.
func (s *Store) Balance(address string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(`SELECT balance FROM balances WHERE address = ?`, address).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance for %s: %w", address, err)
	}
	return balance, nil
}

// ListBlocks returns every block's (id, height), ordered by height
// ascending.
func (s *Store) ListBlocks() ([]ledger.BlockSummary, error) {
	rows, err := s.db.Query(`SELECT id, height FROM blocks ORDER BY height ASC`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []ledger.BlockSummary
	for rows.Next() {
		var b ledger.BlockSummary
		if err := rows.Scan(&b.ID, &b.Height); err != nil {
			return nil, fmt.Errorf("scan block summary: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LoadBlocks reconstructs every surviving block's full payload (id,
// height, transactions with their inputs and outputs), ordered by height
// ascending and, within a block, by submission order. It's used at
// startup and after a rewind to rebuild the in-memory index as a pure
// function of the journal.
func (s *Store) LoadBlocks() ([]*ledger.Block, error) {
	blockRows, err := s.db.Query(`SELECT id, height FROM blocks ORDER BY height ASC`)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	var blocks []*ledger.Block
	for blockRows.Next() {
		b := &ledger.Block{}
		if err := blockRows.Scan(&b.ID, &b.Height); err != nil {
			blockRows.Close()
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := blockRows.Err(); err != nil {
		blockRows.Close()
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	blockRows.Close()

	for _, b := range blocks {
		txs, err := s.loadTransactions(b.ID)
		if err != nil {
			return nil, err
		}
		b.Transactions = txs
	}

	return blocks, nil
}

func (s *Store) loadTransactions(blockID string) ([]ledger.Transaction, error) {
	rows, err := s.db.Query(`SELECT id FROM transactions WHERE block_id = ? ORDER BY tx_order ASC`, blockID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for block %s: %w", blockID, err)
	}
	var txIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		txIDs = append(txIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	txs := make([]ledger.Transaction, 0, len(txIDs))
	for _, id := range txIDs {
		inputs, err := s.loadInputs(id)
		if err != nil {
			return nil, err
		}
		outputs, err := s.loadOutputs(id)
		if err != nil {
			return nil, err
		}
		txs = append(txs, ledger.Transaction{ID: id, Inputs: inputs, Outputs: outputs})
	}
	return txs, nil
}

func (s *Store) loadInputs(txID string) ([]ledger.Input, error) {
	rows, err := s.db.Query(
		`SELECT spent_utxo_txid, spent_utxo_index FROM inputs WHERE tx_id = ? ORDER BY input_order ASC`, txID)
	if err != nil {
		return nil, fmt.Errorf("load inputs for %s: %w", txID, err)
	}
	defer rows.Close()

	var inputs []ledger.Input
	for rows.Next() {
		var in ledger.Input
		if err := rows.Scan(&in.TxID, &in.Index); err != nil {
			return nil, fmt.Errorf("scan input for %s: %w", txID, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// loadOutputs reconstructs a transaction's original output list in index
// order. It reads regardless of is_spent — a surviving transaction's
// outputs may be partially spent by later blocks, and replay needs the
// full original list to reproduce balances incrementally.
func (s *Store) loadOutputs(txID string) ([]ledger.Output, error) {
	rows, err := s.db.Query(`SELECT idx, address, value FROM outputs WHERE txid = ? ORDER BY idx ASC`, txID)
	if err != nil {
		return nil, fmt.Errorf("load outputs for %s: %w", txID, err)
	}
	defer rows.Close()

	var indexed []struct {
		idx int
		out ledger.Output
	}
	for rows.Next() {
		var idx int
		var out ledger.Output
		if err := rows.Scan(&idx, &out.Address, &out.Value); err != nil {
			return nil, fmt.Errorf("scan output for %s: %w", txID, err)
		}
		indexed = append(indexed, struct {
			idx int
			out ledger.Output
		}{idx, out})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(indexed, func(i, j int) bool { return indexed[i].idx < indexed[j].idx })
	outputs := make([]ledger.Output, len(indexed))
	for i, e := range indexed {
		outputs[i] = e.out
	}
	return outputs, nil
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return string(placeholders), args
}
