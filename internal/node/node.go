// Package node assembles the wallet daemon: storage, keystore, dapp
// sessions, transaction hub, and the RPC server. It can be embedded in any
// binary.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/wallet3/wallet3d/config"
	"github.com/wallet3/wallet3d/internal/dapps"
	"github.com/wallet3/wallet3d/internal/keystore"
	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/rpc"
	"github.com/wallet3/wallet3d/internal/storage"
	"github.com/wallet3/wallet3d/internal/txhub"
	"github.com/wallet3/wallet3d/internal/wallet"
)

// accountRefreshInterval is how often each wallet rebuilds its account
// list from persisted state.
const accountRefreshInterval = 30 * time.Second

// Node is a fully-initialized wallet daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db      storage.DB
	store   *keystore.Store
	auth    *keystore.PinAuthenticator
	manager *wallet.Manager

	// DApp sessions
	wc     *dapps.WCRegistry
	inpage *dapps.InpageRegistry
	bridge *dapps.Bridge

	// Transaction dispatch
	hub *txhub.Hub

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a Node. It opens storage and loads wallets
// but does not start the RPC server or background refresh. Call Start()
// for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "wallet3d.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	logger.Info().
		Str("datadir", cfg.DataDir).
		Int("chains", len(cfg.Chains)).
		Msg("Starting Wallet3 daemon")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.KeystoreDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.KeystoreDir(), err)
	}
	logger.Info().Str("path", cfg.KeystoreDir()).Msg("Database opened")

	// ── 3. Keystore and authenticator ───────────────────────────────
	store := keystore.NewStore(db)
	auth := keystore.NewPinAuthenticator(keystore.EncryptionParams{
		Memory:      cfg.KDF.Memory,
		Iterations:  cfg.KDF.Iterations,
		Parallelism: cfg.KDF.Parallelism,
	})

	// ── 4. DApp session bridge ──────────────────────────────────────
	wc := dapps.NewWCRegistry()
	inpage := dapps.NewInpageRegistry(storage.NewPrefixDB(db, []byte("dapps:")))
	bridge := dapps.NewBridge(wc, inpage)

	// ── 5. Transaction hub ──────────────────────────────────────────
	hub := txhub.New(txhub.NewRPCBroadcaster(cfg.Chains), db)

	// ── 6. Wallet manager ───────────────────────────────────────────
	manager := wallet.NewManager(store, db, auth, bridge, hub)

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   store,
		auth:    auth,
		manager: manager,
		wc:      wc,
		inpage:  inpage,
		bridge:  bridge,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := manager.Load(ctx); err != nil {
		n.Stop()
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	// ── 7. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		n.rpcServer = rpc.New(addr, manager, bridge, wc, inpage, hub, cfg.RPC)
	}

	return n, nil
}

// Start launches the RPC server and per-wallet background refresh.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return err
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("RPC server listening")
	}

	for _, w := range n.manager.Wallets() {
		w.StartRefresh(n.ctx, accountRefreshInterval)
	}

	n.logger.Info().
		Int("wallets", len(n.manager.Wallets())).
		Msg("Daemon started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	n.manager.Close()
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Manager exposes the wallet manager for embedding binaries.
func (n *Node) Manager() *wallet.Manager {
	return n.manager
}
