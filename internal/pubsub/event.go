package pubsub

import (
	"time"

	"github.com/vertexledger/node/internal/domain"
)

// EventKind is a closed enumeration of event names, the wire tag for
// every event the node emits (spec.md §3).
type EventKind string

const (
	ManagerStarted          EventKind = "manager:on_start"
	ManagerStopped          EventKind = "manager:on_stop"
	NetworkPeerConnected    EventKind = "network:peer_connected"
	NetworkPeerDisconnected EventKind = "network:peer_disconnected"
	NetworkNewTxAccepted    EventKind = "network:new_tx_accepted"
	StorageTxVoided         EventKind = "storage:tx_voided"
	StorageTxWinner         EventKind = "storage:tx_winner"
	WalletOutputReceived    EventKind = "wallet:output_received"
	// WalletInputSpent's wire tag is "wallet:output_spent", not
	// "wallet:input_spent" — kept verbatim from
	// original_source/hathor/pubsub.py's WALLET_INPUT_SPENT enum value.
	WalletInputSpent EventKind = "wallet:output_spent"
	WalletBalanceUpdated    EventKind = "wallet:balance_updated"
	WalletKeysGenerated     EventKind = "wallet:keys_generated"
	WalletGapLimit          EventKind = "wallet:gap_limit"
	WalletHistoryUpdated    EventKind = "wallet:history_updated"
	WalletAddressHistory    EventKind = "wallet:address_history"
	WalletElementWinner     EventKind = "wallet:element_winner"
	WalletElementVoided     EventKind = "wallet:element_voided"
)

// Payload is the closed tagged-union carried by every event. Design
// Notes §9 ("attribute-bag payloads"): each EventKind gets its own
// struct instead of a dynamic attribute bag. The unexported isPayload
// method keeps the set of implementations inside this package; the
// serializer's type switch covers each one and returns an error at run
// time for any type it has no case for.
type Payload interface {
	isPayload()
}

type ManagerStartedPayload struct{}

func (ManagerStartedPayload) isPayload() {}

type ManagerStoppedPayload struct{}

func (ManagerStoppedPayload) isPayload() {}

// NetworkPeerConnectedPayload carries the peer that just connected.
type NetworkPeerConnectedPayload struct {
	PeerID string
}

func (NetworkPeerConnectedPayload) isPayload() {}

// NetworkPeerDisconnectedPayload carries the peer that just disconnected.
type NetworkPeerDisconnectedPayload struct {
	PeerID string
}

func (NetworkPeerDisconnectedPayload) isPayload() {}

// NetworkNewTxAcceptedPayload carries the accepted transaction and
// whether it is a block, per spec.md §4.3's NETWORK_NEW_TX_ACCEPTED rule.
type NetworkNewTxAcceptedPayload struct {
	Tx      domain.Transaction
	IsBlock bool
}

func (NetworkNewTxAcceptedPayload) isPayload() {}

// StorageTxVoidedPayload carries the voided transaction's hash.
type StorageTxVoidedPayload struct {
	TxHash string
}

func (StorageTxVoidedPayload) isPayload() {}

// StorageTxWinnerPayload carries the winning transaction's hash.
type StorageTxWinnerPayload struct {
	TxHash string
}

func (StorageTxWinnerPayload) isPayload() {}

// WalletOutputReceivedPayload carries a received output, replaced by
// its dict form during serialization (spec.md §4.3).
type WalletOutputReceivedPayload struct {
	Address string
	Output  map[string]any
}

func (WalletOutputReceivedPayload) isPayload() {}

// WalletInputSpentPayload carries a spent output, replaced by its
// dict form during serialization (spec.md §4.3).
type WalletInputSpentPayload struct {
	Address    string
	OutputSpent map[string]any
}

func (WalletInputSpentPayload) isPayload() {}

// WalletBalanceUpdatedPayload carries balances for every token the
// wallet holds; the serializer extracts just the native token's
// record (spec.md §4.3).
type WalletBalanceUpdatedPayload struct {
	Balances domain.TokenBalances
}

func (WalletBalanceUpdatedPayload) isPayload() {}

// WalletKeysGeneratedPayload passes through unchanged (spec.md §4.3).
type WalletKeysGeneratedPayload struct {
	Keys []string
}

func (WalletKeysGeneratedPayload) isPayload() {}

// WalletGapLimitPayload passes through unchanged (spec.md §4.3).
type WalletGapLimitPayload struct {
	GapLimit int
}

func (WalletGapLimitPayload) isPayload() {}

// WalletHistoryUpdatedPayload passes through unchanged (spec.md §4.3).
type WalletHistoryUpdatedPayload struct {
	Address string
}

func (WalletHistoryUpdatedPayload) isPayload() {}

// WalletAddressHistoryPayload passes through unchanged (spec.md §4.3)
// and is address-scoped on delivery (spec.md §3 ADDRESS_EVENTS).
type WalletAddressHistoryPayload struct {
	Address string
	History []map[string]any
}

func (WalletAddressHistoryPayload) isPayload() {}

// WalletElementWinnerPayload is address-scoped on delivery.
type WalletElementWinnerPayload struct {
	Address string
	TxHash  string
}

func (WalletElementWinnerPayload) isPayload() {}

// WalletElementVoidedPayload is address-scoped on delivery.
type WalletElementVoidedPayload struct {
	Address string
	TxHash  string
}

func (WalletElementVoidedPayload) isPayload() {}

// Event is a single published occurrence: a kind, its payload, and
// when it happened.
type Event struct {
	Kind      EventKind
	Payload   Payload
	Timestamp time.Time
}
