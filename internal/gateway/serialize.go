package gateway

import (
	"fmt"

	"github.com/vertexledger/node/internal/config"
	"github.com/vertexledger/node/internal/pubsub"
)

// Serialize converts an event's payload into the flat wire map a
// websocket client receives, attaching type = kind (spec.md §4.3).
// The switch has a case for every payload type pubsub defines; a
// payload type without a case reaches the default branch and is
// reported as an error at run time (the gateway logs it and drops the
// event). Go does not check type switches for exhaustiveness.
func Serialize(tokenUID string, event pubsub.Event) (map[string]any, error) {
	msg, err := serializePayload(tokenUID, event.Payload)
	if err != nil {
		return nil, err
	}
	msg["type"] = string(event.Kind)
	return msg, nil
}

func serializePayload(tokenUID string, payload pubsub.Payload) (map[string]any, error) {
	switch p := payload.(type) {
	case pubsub.WalletKeysGeneratedPayload:
		return map[string]any{"keys": p.Keys}, nil
	case pubsub.WalletGapLimitPayload:
		return map[string]any{"gap_limit": p.GapLimit}, nil
	case pubsub.WalletHistoryUpdatedPayload:
		return map[string]any{"address": p.Address}, nil
	case pubsub.WalletAddressHistoryPayload:
		return map[string]any{"address": p.Address, "history": p.History}, nil

	case pubsub.WalletOutputReceivedPayload:
		return map[string]any{"address": p.Address, "output": p.Output}, nil

	case pubsub.WalletInputSpentPayload:
		return map[string]any{"address": p.Address, "output_spent": p.OutputSpent}, nil

	case pubsub.NetworkNewTxAcceptedPayload:
		if p.Tx == nil {
			return nil, fmt.Errorf("serialize network:new_tx_accepted: nil transaction")
		}
		msg := p.Tx.ToJSONExtended()
		msg["is_block"] = p.IsBlock
		return msg, nil

	case pubsub.WalletBalanceUpdatedPayload:
		balance, ok := p.Balances[tokenUID]
		if !ok {
			return nil, fmt.Errorf("serialize wallet:balance_updated: no balance for token %q", tokenUID)
		}
		return map[string]any{"balance": map[string]any{
			"available": balance.Available,
			"locked":    balance.Locked,
		}}, nil

	case pubsub.WalletElementWinnerPayload:
		return map[string]any{"address": p.Address, "tx_hash": p.TxHash}, nil
	case pubsub.WalletElementVoidedPayload:
		return map[string]any{"address": p.Address, "tx_hash": p.TxHash}, nil

	case pubsub.StorageTxVoidedPayload:
		return map[string]any{"tx_hash": p.TxHash}, nil
	case pubsub.StorageTxWinnerPayload:
		return map[string]any{"tx_hash": p.TxHash}, nil

	case pubsub.NetworkPeerConnectedPayload:
		return map[string]any{"peer_id": p.PeerID}, nil
	case pubsub.NetworkPeerDisconnectedPayload:
		return map[string]any{"peer_id": p.PeerID}, nil

	case pubsub.ManagerStartedPayload:
		return map[string]any{}, nil
	case pubsub.ManagerStoppedPayload:
		return map[string]any{}, nil

	default:
		return nil, fmt.Errorf("serialize: unhandled payload type %T", payload)
	}
}

// isAddressEvent reports whether kind is delivered address-scoped
// rather than broadcast (spec.md §3 ADDRESS_EVENTS).
func isAddressEvent(cfg *config.Config, kind pubsub.EventKind) bool {
	for _, k := range cfg.AddressEvents {
		if k == string(kind) {
			return true
		}
	}
	return false
}

// channelsFor returns the channel names kind should additionally be
// routed to (spec.md §4.4 CHANNELS table).
func channelsFor(cfg *config.Config, kind pubsub.EventKind) []string {
	var out []string
	for name, kinds := range cfg.Channels {
		for _, k := range kinds {
			if k == string(kind) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
