package ledger

import "fmt"

// ErrorKind names a rejection reason without tying callers to a concrete
// Go type — the HTTP layer checks it to pick a status code.
type ErrorKind string

const (
	KindInvalidHeight      ErrorKind = "InvalidHeight"
	KindInputNotFound      ErrorKind = "InputNotFound"
	KindValueMismatch      ErrorKind = "ValueMismatch"
	KindInvalidBlockID     ErrorKind = "InvalidBlockId"
	KindInvalidHeightParam ErrorKind = "InvalidHeightParam"
	KindTargetAboveHead    ErrorKind = "TargetAboveHead"
	KindStoreError         ErrorKind = "StoreError"
)

// ChainError is the error type every validation, rollback, and store
// failure in this codebase surfaces as. The engine returns it directly,
// and handlers map its Kind to an HTTP status.
type ChainError struct {
	Kind    ErrorKind
	Message string

	// Key is set for InputNotFound: the missing "txid:index".
	Key string
	// Expected/Received/HashInput are set for InvalidBlockId.
	Expected  string
	Received  string
	HashInput string
	// Cause, when set, is the underlying store error (StoreError only).
	Cause error
}

func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ChainError) Unwrap() error { return e.Cause }

// NewInvalidHeight reports a block submitted out of height order.
func NewInvalidHeight(currentHeight, got int64) *ChainError {
	want := currentHeight + 1
	return &ChainError{
		Kind:    KindInvalidHeight,
		Message: fmt.Sprintf("expected height %d, got %d", want, got),
	}
}

// NewInputNotFound reports an input whose referenced UTXO does not exist
// in the pre-block snapshot.
func NewInputNotFound(key UTXOKey) *ChainError {
	return &ChainError{
		Kind:    KindInputNotFound,
		Message: fmt.Sprintf("input references unknown UTXO %s", key),
		Key:     string(key),
	}
}

// NewValueMismatch reports a non-coinbase transaction whose input sum
// doesn't equal its output sum.
func NewValueMismatch(txID string, inSum, outSum int64) *ChainError {
	return &ChainError{
		Kind:    KindValueMismatch,
		Message: fmt.Sprintf("transaction %s: input sum %d != output sum %d", txID, inSum, outSum),
	}
}

// NewInvalidBlockID reports a submitted block id that doesn't match the
// digest computed from its height and transaction ids.
func NewInvalidBlockID(expected, received string, hashInput string) *ChainError {
	return &ChainError{
		Kind:      KindInvalidBlockID,
		Message:   "computed block id does not match submitted id",
		Expected:  expected,
		Received:  received,
		HashInput: hashInput,
	}
}

// NewInvalidHeightParam reports a rollback target that isn't a finite
// integer >= 1. detail describes what was wrong with it (the raw string
// that failed to parse, or the out-of-range integer received).
func NewInvalidHeightParam(detail string) *ChainError {
	return &ChainError{
		Kind:    KindInvalidHeightParam,
		Message: fmt.Sprintf("height parameter %s must be an integer >= 1", detail),
	}
}

// NewTargetAboveHead reports a rollback target above the current height.
func NewTargetAboveHead(target, currentHeight int64) *ChainError {
	return &ChainError{
		Kind:    KindTargetAboveHead,
		Message: fmt.Sprintf("target height %d is above current height %d", target, currentHeight),
	}
}

// NewStoreError wraps a persistent-store failure.
func NewStoreError(cause error) *ChainError {
	return &ChainError{
		Kind:    KindStoreError,
		Message: "persistent store operation failed",
		Cause:   cause,
	}
}
