// Package ledger defines the UTXO chain's data model: outputs, inputs,
// transactions, and blocks, plus the identifiers derived from them.
//
// This package holds only shapes and pure derivations (hashing, key
// construction). It never touches the store or the in-memory index —
// those belong to internal/store and internal/engine.
package ledger

import "fmt"

// Output credits value to an address. It is identified by the pair
// (producing transaction id, output index), not by any field it carries
// itself.
type Output struct {
	Address string `json:"address"`
	Value   int64  `json:"value"`
}

// Input references a prior output by its producing transaction id and
// position. It carries no value of its own — that's looked up from the
// referenced output.
type Input struct {
	TxID  string `json:"tx_id"`
	Index int    `json:"index"`
}

// Transaction moves value from referenced inputs to new outputs. A
// transaction with no inputs is a coinbase: it mints value from nothing.
type Transaction struct {
	ID      string   `json:"id"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// IsCoinbase reports whether t mints value rather than spending inputs.
func (t Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 0
}

// Block is a height-ordered group of transactions accepted onto the chain.
type Block struct {
	ID           string        `json:"id"`
	Height       int64         `json:"height"`
	Transactions []Transaction `json:"transactions"`
}

// UTXOKey uniquely identifies a transaction output as "{tx_id}:{index}",
// matching the wire format the spec's key derivation uses.
type UTXOKey string

// NewUTXOKey builds the key identifying the output at txID:index.
func NewUTXOKey(txID string, index int) UTXOKey {
	return UTXOKey(fmt.Sprintf("%s:%d", txID, index))
}

// BlockSummary is the projection of a Block returned by block-listing
// queries: just enough to locate the full record, never the payload.
type BlockSummary struct {
	ID     string `json:"id"`
	Height int64  `json:"height"`
}
