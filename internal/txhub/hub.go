// Package txhub dispatches signed transactions to the network and tracks
// what is still pending.
package txhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/storage"
)

// pendingPrefix namespaces pending-transaction records in the database.
const pendingPrefix = "txhub:pending:"

// ReadableInfo is the human-readable summary attached to an outgoing
// transaction. It is display metadata only; the hub does not interpret it.
type ReadableInfo struct {
	Type      string `json:"type"`
	Symbol    string `json:"symbol,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	DApp      string `json:"dapp,omitempty"`
}

// BroadcastRequest carries a signed transaction to the network seam.
type BroadcastRequest struct {
	ChainID      *big.Int
	TxHex        string
	Tx           *types.Transaction
	ReadableInfo ReadableInfo
}

// Broadcaster submits a raw signed transaction and reports its hash.
// Failures propagate unmodified; retry policy belongs to the implementation.
type Broadcaster interface {
	BroadcastTx(ctx context.Context, req BroadcastRequest) (common.Hash, error)
}

// RPCBroadcaster submits transactions over JSON-RPC, one endpoint per chain.
type RPCBroadcaster struct {
	endpoints map[uint64]string
	logger    zerolog.Logger
}

// NewRPCBroadcaster creates a broadcaster with a chain-id to RPC URL map.
func NewRPCBroadcaster(endpoints map[uint64]string) *RPCBroadcaster {
	eps := make(map[uint64]string, len(endpoints))
	for id, url := range endpoints {
		eps[id] = url
	}
	return &RPCBroadcaster{endpoints: eps, logger: klog.TxHub}
}

// BroadcastTx implements Broadcaster.
func (b *RPCBroadcaster) BroadcastTx(ctx context.Context, req BroadcastRequest) (common.Hash, error) {
	if req.ChainID == nil {
		return common.Hash{}, errors.New("broadcast: missing chain id")
	}
	url, ok := b.endpoints[req.ChainID.Uint64()]
	if !ok {
		return common.Hash{}, fmt.Errorf("broadcast: no rpc endpoint for chain %d", req.ChainID.Uint64())
	}

	raw, err := hexutil.Decode(req.TxHex)
	if err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: decode tx hex: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: parse signed tx: %w", err)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: dial %s: %w", url, err)
	}
	defer client.Close()

	if err := client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: send tx: %w", err)
	}

	b.logger.Info().
		Uint64("chain_id", req.ChainID.Uint64()).
		Str("hash", tx.Hash().Hex()).
		Msg("Transaction broadcast")

	return tx.Hash(), nil
}

// PendingTx is a broadcast transaction awaiting confirmation.
type PendingTx struct {
	Hash         string       `json:"hash"`
	ChainID      uint64       `json:"chain_id"`
	TxHex        string       `json:"tx_hex"`
	ReadableInfo ReadableInfo `json:"readable_info"`
	SubmittedAt  time.Time    `json:"submitted_at"`
}

// Hub shapes send requests into broadcasts and records pending txs.
// It adds no retry or queueing logic of its own.
type Hub struct {
	broadcaster Broadcaster
	db          storage.DB
	logger      zerolog.Logger
}

// New creates a Hub forwarding to the given broadcaster.
func New(broadcaster Broadcaster, db storage.DB) *Hub {
	return &Hub{
		broadcaster: broadcaster,
		db:          db,
		logger:      klog.TxHub,
	}
}

// BroadcastTx implements Broadcaster: it forwards the request and, on
// success, records the pending transaction.
func (h *Hub) BroadcastTx(ctx context.Context, req BroadcastRequest) (common.Hash, error) {
	hash, err := h.broadcaster.BroadcastTx(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}

	pending := PendingTx{
		Hash:         hash.Hex(),
		TxHex:        req.TxHex,
		ReadableInfo: req.ReadableInfo,
		SubmittedAt:  time.Now().UTC(),
	}
	if req.ChainID != nil {
		pending.ChainID = req.ChainID.Uint64()
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return common.Hash{}, fmt.Errorf("marshal pending tx: %w", err)
	}
	if err := h.db.Put(pendingKey(pending.Hash), data); err != nil {
		// The tx is already on the wire; losing the record is logged, not fatal.
		h.logger.Error().Err(err).Str("hash", pending.Hash).Msg("Failed to record pending tx")
	}

	return hash, nil
}

// Pending returns recorded pending transactions, oldest first.
func (h *Hub) Pending() ([]PendingTx, error) {
	var txs []PendingTx
	err := h.db.ForEach([]byte(pendingPrefix), func(_, value []byte) error {
		var p PendingTx
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("parse pending tx record: %w", err)
		}
		txs = append(txs, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].SubmittedAt.Before(txs[j].SubmittedAt)
	})
	return txs, nil
}

// Clear drops the pending record for hash (confirmed or abandoned).
func (h *Hub) Clear(hash string) error {
	return h.db.Delete(pendingKey(hash))
}

func pendingKey(hash string) []byte {
	return []byte(pendingPrefix + hash)
}
