// Package domain defines the narrow collaborator interfaces this
// repository needs from the rest of a node: transaction encoding, DAG
// tip selection, storage, and propagation. Transaction format, PoW,
// and consensus are out of scope here (spec.md Non-goals); a real node
// binary supplies concrete implementations satisfying these
// interfaces, grounded on the shapes visible in
// original_source/hathor/wallet/resources/thin_wallet/send_tokens.py
// and original_source/hathor/transaction/storage/json_storage.py.
package domain

import (
	"errors"
	"time"
)

// Transaction is the minimal surface the mining handler and pub/sub
// bus need from a DAG transaction, mirroring the fields
// send_tokens.py's render_POST reads and mutates on hathor.transaction.Transaction.
type Transaction interface {
	Hash() string
	SetHash(string)
	Timestamp() time.Time
	SetTimestamp(time.Time)
	Parents() []string
	SetParents([]string)
	Verify() error
	ToJSON() map[string]any
	ToJSONExtended() map[string]any
	IsBlock() bool
	// Inputs returns one identifier per input spent (the twin-tx
	// diagnostic uses "tx_id:index"); twin-tx conflict detection
	// compares them. The mining handler resolves spent-input
	// timestamps through TxStorage.SpentInputsOf instead.
	Inputs() []string
}

// SpentInput is the timestamp-bearing half of a transaction input
// needed to compute a new transaction's minimum valid timestamp.
type SpentInput interface {
	Timestamp() time.Time
}

// TxStorage decodes transactions from wire hex and resolves the
// transactions spent by a transaction's inputs.
type TxStorage interface {
	DecodeTransaction(hex string) (Transaction, error)
	SpentInputsOf(tx Transaction) ([]SpentInput, error)
}

// TipSelector chooses DAG parents for a new transaction at a given
// timestamp (hathor.manager.HathorManager.get_new_tx_parents).
type TipSelector interface {
	ParentsAt(ts time.Time) []string
}

// Propagator hands a mined, verified transaction to the rest of the
// node (hathor.manager.HathorManager.propagate_tx).
type Propagator interface {
	Propagate(tx Transaction) error
}

// ErrInvalidNewTransaction mirrors hathor.exception.InvalidNewTransaction:
// propagation refused the (mined) transaction as an inadmissible new
// transaction.
var ErrInvalidNewTransaction = errors.New("invalid new transaction")

// ErrValidation mirrors hathor.transaction.exceptions.TxValidationError:
// propagation rejected the (mined) transaction.
var ErrValidation = errors.New("transaction validation failed")

// Balance is one token's available and locked amounts, the shape
// WALLET_BALANCE_UPDATED reports for the native token (spec.md §6,
// §4.3's "balance record for the native token").
type Balance struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

// TokenBalances maps a token UID to its Balance.
type TokenBalances map[string]Balance
