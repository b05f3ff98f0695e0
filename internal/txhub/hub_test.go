package txhub

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wallet3/wallet3d/internal/storage"
)

type fakeBroadcaster struct {
	hash common.Hash
	err  error
	seen []BroadcastRequest
}

func (f *fakeBroadcaster) BroadcastTx(_ context.Context, req BroadcastRequest) (common.Hash, error) {
	f.seen = append(f.seen, req)
	return f.hash, f.err
}

func TestHubRecordsPendingOnSuccess(t *testing.T) {
	db := storage.NewMemory()
	hash := common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
	h := New(&fakeBroadcaster{hash: hash}, db)

	got, err := h.BroadcastTx(context.Background(), BroadcastRequest{
		ChainID: big.NewInt(1),
		TxHex:   "0x02f8",
		ReadableInfo: ReadableInfo{
			Type:   "transfer",
			Symbol: "ETH",
			Amount: "1.5",
		},
	})
	if err != nil {
		t.Fatalf("BroadcastTx: %v", err)
	}
	if got != hash {
		t.Errorf("hash %s, want %s", got.Hex(), hash.Hex())
	}

	pending, err := h.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending count %d, want 1", len(pending))
	}
	p := pending[0]
	if p.Hash != hash.Hex() || p.ChainID != 1 || p.ReadableInfo.Symbol != "ETH" {
		t.Errorf("pending record %+v", p)
	}
	if p.SubmittedAt.IsZero() {
		t.Error("pending record has zero timestamp")
	}
}

func TestHubDoesNotRecordOnFailure(t *testing.T) {
	db := storage.NewMemory()
	h := New(&fakeBroadcaster{err: errors.New("nonce too low")}, db)

	_, err := h.BroadcastTx(context.Background(), BroadcastRequest{ChainID: big.NewInt(1), TxHex: "0x02f8"})
	if err == nil {
		t.Fatal("expected broadcast error")
	}

	pending, err := h.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count %d after failed broadcast", len(pending))
	}
}

func TestHubClear(t *testing.T) {
	db := storage.NewMemory()
	hash := common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000002")
	h := New(&fakeBroadcaster{hash: hash}, db)

	if _, err := h.BroadcastTx(context.Background(), BroadcastRequest{ChainID: big.NewInt(1), TxHex: "0x02f8"}); err != nil {
		t.Fatalf("BroadcastTx: %v", err)
	}
	if err := h.Clear(hash.Hex()); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	pending, err := h.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending count %d after clear", len(pending))
	}
}

func TestRPCBroadcasterUnknownChain(t *testing.T) {
	b := NewRPCBroadcaster(map[uint64]string{1: "http://localhost:8545"})

	_, err := b.BroadcastTx(context.Background(), BroadcastRequest{ChainID: big.NewInt(137), TxHex: "0x00"})
	if err == nil {
		t.Fatal("expected error for unknown chain")
	}
}

func TestRPCBroadcasterMissingChainID(t *testing.T) {
	b := NewRPCBroadcaster(nil)

	_, err := b.BroadcastTx(context.Background(), BroadcastRequest{TxHex: "0x00"})
	if err == nil {
		t.Fatal("expected error for missing chain id")
	}
}
