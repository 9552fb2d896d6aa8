package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vertexledger/node/internal/domain"
)

// twinTxCmd is a lightweight diagnostic supplemented from
// original_source/hathor/cli/twin_tx.py (dropped by the spec
// distillation but visible in the original): the original builds an
// actual twin transaction with swapped parents against a live node. The
// full transaction-construction/PoW/tip-selection machinery those
// flags depend on is out of scope here (Non-goals), so this adapts the
// diagnostic to what can be answered standalone: whether two
// already-decoded transactions conflict by sharing a spent input.
//
// Each argument is a hex-encoded JSON object of the form
// {"hash":"...","inputs":["tx_id:index", ...]}, matching the shape a
// node's JSON storage already emits for a transaction (spec_full.md
// "standalone tooling") without requiring the out-of-scope binary wire
// format or a live node's TxStorage.
var twinTxCmd = &cobra.Command{
	Use:   "twin-tx <tx-hex-a> <tx-hex-b>",
	Short: "Report whether two transactions conflict (share an input)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTwinTx,
}

func runTwinTx(cmd *cobra.Command, args []string) error {
	a, err := decodeTwinTxHex(args[0])
	if err != nil {
		return fmt.Errorf("decode first transaction: %w", err)
	}
	b, err := decodeTwinTxHex(args[1])
	if err != nil {
		return fmt.Errorf("decode second transaction: %w", err)
	}

	out := cmd.OutOrStdout()
	if conflicts(a, b) {
		fmt.Fprintf(out, "conflict: %s and %s share at least one input\n", a.Hash(), b.Hash())
	} else {
		fmt.Fprintf(out, "no conflict: %s and %s share no inputs\n", a.Hash(), b.Hash())
	}
	return nil
}

// conflicts reports whether a and b spend at least one of the same inputs.
func conflicts(a, b domain.Transaction) bool {
	seen := make(map[string]struct{}, len(a.Inputs()))
	for _, in := range a.Inputs() {
		seen[in] = struct{}{}
	}
	for _, in := range b.Inputs() {
		if _, ok := seen[in]; ok {
			return true
		}
	}
	return false
}

// decodeTwinTxHex decodes a hex-encoded JSON transaction record into a
// domain.Transaction. This is self-contained to the twin-tx diagnostic:
// it reads only the hash and inputs the conflict check needs, not the
// real (out-of-scope) transaction wire format a node speaks on the
// network.
func decodeTwinTxHex(hexBlob string) (domain.Transaction, error) {
	raw, err := hex.DecodeString(hexBlob)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	var wire struct {
		Hash   string   `json:"hash"`
		Inputs []string `json:"inputs"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode transaction json: %w", err)
	}
	if wire.Hash == "" {
		return nil, errors.New("transaction record missing \"hash\" field")
	}

	return &twinTxTransaction{hash: wire.Hash, inputs: wire.Inputs}, nil
}

// twinTxTransaction is a minimal domain.Transaction backing the
// twin-tx diagnostic; only Hash and Inputs carry real data.
type twinTxTransaction struct {
	hash   string
	inputs []string
}

func (t *twinTxTransaction) Hash() string           { return t.hash }
func (t *twinTxTransaction) SetHash(h string)       { t.hash = h }
func (t *twinTxTransaction) Timestamp() time.Time   { return time.Time{} }
func (t *twinTxTransaction) SetTimestamp(time.Time) {}
func (t *twinTxTransaction) Parents() []string      { return nil }
func (t *twinTxTransaction) SetParents([]string)    {}
func (t *twinTxTransaction) Verify() error          { return nil }
func (t *twinTxTransaction) ToJSON() map[string]any {
	return map[string]any{"hash": t.hash, "inputs": t.inputs}
}
func (t *twinTxTransaction) ToJSONExtended() map[string]any { return t.ToJSON() }
func (t *twinTxTransaction) IsBlock() bool                  { return false }
func (t *twinTxTransaction) Inputs() []string               { return t.inputs }

var _ domain.Transaction = (*twinTxTransaction)(nil)
