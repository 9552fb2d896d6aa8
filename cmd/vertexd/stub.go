package main

import (
	"errors"
	"time"

	"github.com/vertexledger/node/internal/domain"
	"github.com/vertexledger/node/internal/mining"
)

// Transaction format, PoW, consensus, storage and tip selection are
// explicit Non-goals (spec.md Non-goals). This binary wires the gateway
// and mining endpoint against the narrow interfaces internal/domain
// defines; until a real node implementation (transaction codec, DAG
// storage, tip selection, PoW) is linked in, these stand-ins satisfy
// those interfaces so `vertexd serve` has something to boot, and report
// a clear "not implemented" failure rather than a panic when a client
// actually calls the endpoint.

var errNotImplemented = errors.New("transaction storage/mining backend not configured")

type unimplementedStorage struct{}

func (unimplementedStorage) DecodeTransaction(hex string) (domain.Transaction, error) {
	return nil, errNotImplemented
}

func (unimplementedStorage) SpentInputsOf(tx domain.Transaction) ([]domain.SpentInput, error) {
	return nil, errNotImplemented
}

type unimplementedTipSelector struct{}

func (unimplementedTipSelector) ParentsAt(ts time.Time) []string { return nil }

type unimplementedPropagator struct{}

func (unimplementedPropagator) Propagate(tx domain.Transaction) error {
	return errNotImplemented
}

type unimplementedMiner struct{}

func (unimplementedMiner) Mine(tx domain.Transaction, shouldStop func() bool) (string, error) {
	return "", errNotImplemented
}

var _ mining.Miner = unimplementedMiner{}
