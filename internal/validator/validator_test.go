package validator

import (
	"testing"

	"github.com/roastedledger/utxo-indexer/internal/ledger"
)

func lookupFrom(utxos map[ledger.UTXOKey]ledger.Output) UTXOLookup {
	return func(key ledger.UTXOKey) (ledger.Output, bool) {
		out, ok := utxos[key]
		return out, ok
	}
}

func mustBlockID(b *ledger.Block) string {
	b.ID = ledger.ComputeBlockID(b)
	return b.ID
}

func TestValidateAcceptsGenesisCoinbase(t *testing.T) {
	b := &ledger.Block{
		Height: 1,
		Transactions: []ledger.Transaction{
			{ID: "coinbase-1", Outputs: []ledger.Output{{Address: "alice", Value: 50}}},
		},
	}
	mustBlockID(b)

	if cerr := Validate(b, 0, lookupFrom(nil)); cerr != nil {
		t.Fatalf("Validate() = %v, want nil", cerr)
	}
}

func TestValidateRejectsWrongHeight(t *testing.T) {
	b := &ledger.Block{Height: 2, Transactions: []ledger.Transaction{{ID: "coinbase-1"}}}
	mustBlockID(b)

	cerr := Validate(b, 0, lookupFrom(nil))
	if cerr == nil || cerr.Kind != ledger.KindInvalidHeight {
		t.Fatalf("Validate() = %v, want KindInvalidHeight", cerr)
	}
}

func TestValidateRejectsMissingInput(t *testing.T) {
	b := &ledger.Block{
		Height: 1,
		Transactions: []ledger.Transaction{
			{
				ID:      "tx1",
				Inputs:  []ledger.Input{{TxID: "nonexistent", Index: 0}},
				Outputs: []ledger.Output{{Address: "bob", Value: 10}},
			},
		},
	}
	mustBlockID(b)

	cerr := Validate(b, 0, lookupFrom(nil))
	if cerr == nil || cerr.Kind != ledger.KindInputNotFound {
		t.Fatalf("Validate() = %v, want KindInputNotFound", cerr)
	}
	if cerr.Key != "nonexistent:0" {
		t.Errorf("cerr.Key = %q, want %q", cerr.Key, "nonexistent:0")
	}
}

func TestValidateRejectsValueMismatch(t *testing.T) {
	utxos := map[ledger.UTXOKey]ledger.Output{
		ledger.NewUTXOKey("coinbase-1", 0): {Address: "alice", Value: 50},
	}
	b := &ledger.Block{
		Height: 2,
		Transactions: []ledger.Transaction{
			{
				ID:      "tx1",
				Inputs:  []ledger.Input{{TxID: "coinbase-1", Index: 0}},
				Outputs: []ledger.Output{{Address: "bob", Value: 40}},
			},
		},
	}
	mustBlockID(b)

	cerr := Validate(b, 1, lookupFrom(utxos))
	if cerr == nil || cerr.Kind != ledger.KindValueMismatch {
		t.Fatalf("Validate() = %v, want KindValueMismatch", cerr)
	}
}

func TestValidateRejectsBadBlockID(t *testing.T) {
	b := &ledger.Block{
		ID:     "not-the-real-digest",
		Height: 1,
		Transactions: []ledger.Transaction{
			{ID: "coinbase-1", Outputs: []ledger.Output{{Address: "alice", Value: 50}}},
		},
	}

	cerr := Validate(b, 0, lookupFrom(nil))
	if cerr == nil || cerr.Kind != ledger.KindInvalidBlockID {
		t.Fatalf("Validate() = %v, want KindInvalidBlockID", cerr)
	}
	if cerr.Received != "not-the-real-digest" {
		t.Errorf("cerr.Received = %q, want the submitted id", cerr.Received)
	}
}

func TestValidateAcceptsConservingSpend(t *testing.T) {
	utxos := map[ledger.UTXOKey]ledger.Output{
		ledger.NewUTXOKey("coinbase-1", 0): {Address: "alice", Value: 50},
	}
	b := &ledger.Block{
		Height: 2,
		Transactions: []ledger.Transaction{
			{
				ID:     "tx1",
				Inputs: []ledger.Input{{TxID: "coinbase-1", Index: 0}},
				Outputs: []ledger.Output{
					{Address: "bob", Value: 30},
					{Address: "alice", Value: 20},
				},
			},
		},
	}
	mustBlockID(b)

	if cerr := Validate(b, 1, lookupFrom(utxos)); cerr != nil {
		t.Fatalf("Validate() = %v, want nil", cerr)
	}
}

// TestValidateOrdersHeightBeforeInputExistence checks that a block with
// both a bad height and a missing input reports InvalidHeight, since
// height is checked first and later checks are short-circuited.
func TestValidateOrdersHeightBeforeInputExistence(t *testing.T) {
	b := &ledger.Block{
		Height: 5,
		Transactions: []ledger.Transaction{
			{ID: "tx1", Inputs: []ledger.Input{{TxID: "nope", Index: 0}}},
		},
	}
	mustBlockID(b)

	cerr := Validate(b, 0, lookupFrom(nil))
	if cerr == nil || cerr.Kind != ledger.KindInvalidHeight {
		t.Fatalf("Validate() = %v, want KindInvalidHeight (checked before InputNotFound)", cerr)
	}
}

func TestValidateRejectsIntraBlockSpend(t *testing.T) {
	b := &ledger.Block{
		Height: 1,
		Transactions: []ledger.Transaction{
			{ID: "coinbase-1", Outputs: []ledger.Output{{Address: "alice", Value: 50}}},
			{
				ID:      "tx2",
				Inputs:  []ledger.Input{{TxID: "coinbase-1", Index: 0}},
				Outputs: []ledger.Output{{Address: "bob", Value: 50}},
			},
		},
	}
	mustBlockID(b)

	// The pre-block snapshot is empty: coinbase-1's output only exists
	// once this whole block has been applied, not while validating it.
	cerr := Validate(b, 0, lookupFrom(nil))
	if cerr == nil || cerr.Kind != ledger.KindInputNotFound {
		t.Fatalf("Validate() = %v, want KindInputNotFound for same-block spend", cerr)
	}
}
