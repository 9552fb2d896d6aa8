package mining

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/vertexledger/node/internal/domain"
	"github.com/vertexledger/node/internal/gateway"
	"github.com/vertexledger/node/internal/pubsub"
	"github.com/vertexledger/node/internal/reactor"
)

// Handler serves POST /thin_wallet/send_tokens (spec.md §4.5). It owns
// no gateway state; the only cross-goroutine coordination is handing
// preparation and propagation work to the reactor loop via
// loop.SubmitFromWorker, and running proof-of-work on its own
// goroutine guarded by Pool's admission count.
type Handler struct {
	Pool       *Pool
	Storage    domain.TxStorage
	Tips       domain.TipSelector
	Propagator domain.Propagator
	Miner      Miner
	Bus        *pubsub.Bus
	Loop       *reactor.Loop
	Logger     *slog.Logger
}

type sendTokensRequest struct {
	TxHex string `json:"tx_hex"`
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		gateway.RenderOptions(w, http.MethodPost)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	gateway.SetCORS(w, http.MethodPost)

	// Admission (spec.md §4.5 "Admission"), checked before the request
	// body is even read, matching
	// original_source/hathor/wallet/resources/thin_wallet/send_tokens.py's
	// render_POST order.
	if !h.Pool.TryAcquire() {
		writeJSON(w, sendTokensResponse{Success: false, Message: "server fully loaded, try again later"})
		return
	}
	defer h.Pool.Release()

	var body sendTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, sendTokensResponse{Success: false, Message: "malformed request body"})
		return
	}

	// Preparation, on the reactor loop (spec.md §4.5 "Preparation (reactor thread)").
	tx, err := h.prepare(body.TxHex)
	if err != nil {
		writeJSON(w, sendTokensResponse{Success: false, Message: err.Error()})
		return
	}

	// Dispatch to the worker; should_stop is observed between PoW
	// attempts and set by the client-disconnect branch below.
	j := &job{}
	mined := make(chan minedResult, 1)
	go func() {
		hash, err := h.Miner.Mine(tx, j.ShouldStop)
		mined <- minedResult{hash: hash, err: err}
	}()

	select {
	case <-r.Context().Done():
		// Client disconnect (spec.md §4.5 "Client disconnect"; §7
		// "Worker cancellation"): no response is written.
		j.Stop()
		return
	case res := <-mined:
		if errors.Is(res.err, ErrCancelled) {
			return
		}
		if res.err != nil {
			writeJSON(w, sendTokensResponse{Success: false, Message: res.err.Error(), Tx: tx.ToJSON()})
			return
		}
		h.finish(w, tx, res.hash)
	}
}

type minedResult struct {
	hash string
	err  error
}

type sendTokensResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Tx      map[string]any `json:"tx,omitempty"`
}

// prepare decodes tx_hex, resolves its minimum valid timestamp against
// the transactions it spends, and assigns DAG parents — all on the
// reactor loop, since TipSelector reads state the reactor owns
// (spec.md §4.5; original_source's max_ts_spent_tx/get_new_tx_parents).
func (h *Handler) prepare(txHex string) (domain.Transaction, error) {
	type result struct {
		tx  domain.Transaction
		err error
	}
	resultCh := make(chan result, 1)

	h.Loop.SubmitFromWorker(func() {
		tx, err := h.Storage.DecodeTransaction(txHex)
		if err != nil {
			resultCh <- result{err: err}
			return
		}

		spent, err := h.Storage.SpentInputsOf(tx)
		if err != nil {
			resultCh <- result{err: err}
			return
		}

		minTs := tx.Timestamp()
		for _, in := range spent {
			candidate := in.Timestamp().Add(time.Second)
			if candidate.After(minTs) {
				minTs = candidate
			}
		}
		tx.SetTimestamp(minTs)
		tx.SetParents(h.Tips.ParentsAt(minTs))

		resultCh <- result{tx: tx}
	})

	r := <-resultCh
	return r.tx, r.err
}

// finish assigns the mined hash, verifies and propagates the
// transaction, and on success republishes it onto the bus — all back
// on the reactor loop (spec.md §4.5 "Success path (back on reactor)").
func (h *Handler) finish(w http.ResponseWriter, tx domain.Transaction, hash string) {
	type result struct {
		resp sendTokensResponse
	}
	resultCh := make(chan result, 1)

	h.Loop.SubmitFromWorker(func() {
		tx.SetHash(hash)

		if err := tx.Verify(); err != nil {
			resultCh <- result{resp: sendTokensResponse{Success: false, Message: err.Error(), Tx: tx.ToJSON()}}
			return
		}

		if err := h.Propagator.Propagate(tx); err != nil {
			if errors.Is(err, domain.ErrInvalidNewTransaction) || errors.Is(err, domain.ErrValidation) {
				resultCh <- result{resp: sendTokensResponse{Success: false, Message: err.Error(), Tx: tx.ToJSON()}}
				return
			}
			h.logger().Error("transaction propagation failed", "hash", tx.Hash(), "err", err)
			resultCh <- result{resp: sendTokensResponse{Success: false, Message: err.Error(), Tx: tx.ToJSON()}}
			return
		}

		h.Bus.PublishOnReactor(pubsub.NetworkNewTxAccepted, pubsub.NetworkNewTxAcceptedPayload{Tx: tx, IsBlock: tx.IsBlock()})
		resultCh <- result{resp: sendTokensResponse{Success: true, Tx: tx.ToJSON()}}
	})

	r := <-resultCh
	writeJSON(w, r.resp)
}

func writeJSON(w http.ResponseWriter, resp sendTokensResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
