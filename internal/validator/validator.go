// Package validator implements the block validator (C3): a pure function
// that decides whether a candidate block may be applied to the current
// chain state. It never mutates anything it's given.
package validator

import "github.com/roastedledger/utxo-indexer/internal/ledger"

// UTXOLookup answers whether key is present in the pre-block UTXO
// snapshot, and if so, the output it identifies. Implementations must
// reflect state as of the moment validation starts — outputs produced by
// earlier transactions within the same candidate block are not visible
// here (see Validate's ordering note).
type UTXOLookup func(key ledger.UTXOKey) (ledger.Output, bool)

// Validate checks block against the chain state at currentHeight using
// lookup for UTXO existence, in the order the spec requires: height,
// then UTXO existence, then value conservation, then block identity. The
// first failing check wins; later checks are not performed. Returns nil
// on acceptance.
//
// Ordering edge case: lookup must answer from the snapshot taken before
// this block, so a transaction spending an output produced earlier in the
// same block is rejected with InputNotFound — outputs only become visible
// once the whole block is applied.
func Validate(block *ledger.Block, currentHeight int64, lookup UTXOLookup) *ledger.ChainError {
	if cerr := checkHeight(block, currentHeight); cerr != nil {
		return cerr
	}
	if cerr := checkInputsExist(block, lookup); cerr != nil {
		return cerr
	}
	if cerr := checkValueConservation(block, lookup); cerr != nil {
		return cerr
	}
	if cerr := checkBlockID(block); cerr != nil {
		return cerr
	}
	return nil
}

func checkHeight(block *ledger.Block, currentHeight int64) *ledger.ChainError {
	var want int64
	if currentHeight == 0 {
		want = 1
	} else {
		want = currentHeight + 1
	}
	if block.Height != want {
		return ledger.NewInvalidHeight(currentHeight, block.Height)
	}
	return nil
}

func checkInputsExist(block *ledger.Block, lookup UTXOLookup) *ledger.ChainError {
	for _, tx := range block.Transactions {
		for _, in := range tx.Inputs {
			key := ledger.NewUTXOKey(in.TxID, in.Index)
			if _, ok := lookup(key); !ok {
				return ledger.NewInputNotFound(key)
			}
		}
	}
	return nil
}

func checkValueConservation(block *ledger.Block, lookup UTXOLookup) *ledger.ChainError {
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}

		var inSum int64
		for _, in := range tx.Inputs {
			key := ledger.NewUTXOKey(in.TxID, in.Index)
			out, _ := lookup(key) // existence already verified
			inSum += out.Value
		}

		var outSum int64
		for _, out := range tx.Outputs {
			outSum += out.Value
		}

		if inSum != outSum {
			return ledger.NewValueMismatch(tx.ID, inSum, outSum)
		}
	}
	return nil
}

func checkBlockID(block *ledger.Block) *ledger.ChainError {
	expected := ledger.ComputeBlockID(block)
	if block.ID != expected {
		return ledger.NewInvalidBlockID(expected, block.ID, ledger.HashInput(block))
	}
	return nil
}
