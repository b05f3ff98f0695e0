package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/wallet3/wallet3d/internal/keystore"
	"github.com/wallet3/wallet3d/internal/wallet"
)

// ── Wallet handlers ─────────────────────────────────────────────────────

func (s *Server) handleWalletCreate(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletCreateParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Pin == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "pin required"}
	}

	mnemonic := p.Mnemonic
	generated := false
	if mnemonic == "" {
		var err error
		mnemonic, err = keystore.GenerateMnemonic()
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: err.Error()}
		}
		generated = true
	}

	basePath := p.BasePath
	if basePath == "" {
		basePath = keystore.DefaultBasePath
	}

	w, err := s.manager.CreateHD(ctx, mnemonic, p.Passphrase, basePath, p.BaseIndex, p.Pin)
	if err != nil {
		return nil, walletError(err)
	}

	result := CreateResult{
		KeyID:   w.Key().ID,
		Address: w.Accounts()[0].Address.Hex(),
	}
	if generated {
		// The caller must persist this; it is never returned again without
		// the pin.
		result.Mnemonic = mnemonic
	}
	return result, nil
}

func (s *Server) handleWalletImport(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletImportParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Pin == "" || p.PrivateKey == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "private_key and pin required"}
	}

	w, err := s.manager.ImportKey(ctx, p.PrivateKey, p.Pin)
	if err != nil {
		return nil, walletError(err)
	}
	return CreateResult{
		KeyID:   w.Key().ID,
		Address: w.Accounts()[0].Address.Hex(),
	}, nil
}

func (s *Server) handleWalletList(_ *Request) (interface{}, *Error) {
	wallets := s.manager.Wallets()
	results := make([]WalletResult, len(wallets))
	for i, w := range wallets {
		results[i] = newWalletResult(w)
	}
	return results, nil
}

func (s *Server) handleWalletAccounts(req *Request) (interface{}, *Error) {
	var p KeyParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}
	return newWalletResult(w).Accounts, nil
}

func (s *Server) handleWalletNewAccount(req *Request) (interface{}, *Error) {
	var p KeyParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}

	account, err := w.NewAccount()
	if err != nil {
		return nil, walletError(err)
	}
	if account == nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("wallet %s cannot derive accounts", p.KeyID)}
	}
	return AccountResult{Address: account.Address.Hex(), Index: account.Index}, nil
}

func (s *Server) handleWalletRemoveAccount(req *Request) (interface{}, *Error) {
	var p AccountParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}

	for _, a := range w.Accounts() {
		if a.Address.Hex() == p.Address || hexutil.Encode(a.Address.Bytes()) == p.Address {
			if err := w.RemoveAccount(a); err != nil {
				return nil, walletError(err)
			}
			return true, nil
		}
	}
	// Unknown address is a no-op, mirrored in the response.
	return false, nil
}

func (s *Server) handleWalletRemove(req *Request) (interface{}, *Error) {
	var p KeyParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.manager.Remove(p.KeyID); err != nil {
		return nil, walletError(err)
	}
	return true, nil
}

func (s *Server) handleWalletGetSecret(ctx context.Context, req *Request) (interface{}, *Error) {
	var p SecretParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}

	secret, err := w.GetSecret(ctx, p.Pin)
	if err != nil {
		return nil, walletError(err)
	}
	return map[string]string{"secret": secret}, nil
}

// ── Signing handlers ────────────────────────────────────────────────────

func (s *Server) handleWalletSignTx(ctx context.Context, req *Request) (interface{}, *Error) {
	var p SignTxParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}
	tx, rpcErr := buildTx(p.Tx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := w.SignTx(ctx, wallet.SignTxRequest{Index: p.Index, Tx: tx, Pin: p.Pin})
	if err != nil {
		return nil, walletError(err)
	}
	return SignTxResult{Raw: raw}, nil
}

func (s *Server) handleWalletSignMessage(ctx context.Context, req *Request) (interface{}, *Error) {
	var p SignMessageParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}

	msg := []byte(p.Message)
	if p.Raw {
		msg, err = hexutil.Decode(p.Message)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("message: %v", err)}
		}
	}

	sig, err := w.SignMessage(ctx, wallet.SignMessageRequest{
		Index:    p.Index,
		Msg:      msg,
		Raw:      p.Raw,
		Standard: p.Standard,
		Pin:      p.Pin,
	})
	if err != nil {
		return nil, walletError(err)
	}
	return SignResult{Signature: sig}, nil
}

func (s *Server) handleWalletSignTypedData(ctx context.Context, req *Request) (interface{}, *Error) {
	var p SignTypedDataParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}

	sig, err := w.SignTypedData(ctx, wallet.SignTypedDataRequest{
		Index:     p.Index,
		TypedData: p.TypedData,
		Version:   wallet.TypedDataVersion(p.Version),
		Pin:       p.Pin,
	})
	if err != nil {
		return nil, walletError(err)
	}
	return SignResult{Signature: sig}, nil
}

func (s *Server) handleWalletSendTx(ctx context.Context, req *Request) (interface{}, *Error) {
	var p SendTxParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	w, err := s.manager.Find(p.KeyID)
	if err != nil {
		return nil, walletError(err)
	}
	tx, rpcErr := buildTx(p.Tx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	hash, err := w.SendTx(ctx, wallet.SendTxRequest{
		Index:        p.Index,
		Tx:           tx,
		Pin:          p.Pin,
		ReadableInfo: p.ReadableInfo,
	})
	if err != nil {
		return nil, walletError(err)
	}
	return SendTxResult{Hash: hash.Hex()}, nil
}

// ── DApp handlers ───────────────────────────────────────────────────────

func (s *Server) handleDAppConnect(req *Request) (interface{}, *Error) {
	var p DAppConnectParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Origin == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "origin required"}
	}

	if p.WalletConnect {
		return s.wc.Connect(p.Origin, p.ChainID, p.Account, p.Mobile), nil
	}
	session, err := s.inpage.Connect(p.Origin, p.ChainID, p.Account)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return session, nil
}

func (s *Server) handleDAppDisconnect(req *Request) (interface{}, *Error) {
	var p DAppOriginParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	s.wc.Disconnect(p.Origin)
	if err := s.inpage.Disconnect(p.Origin); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return true, nil
}

func (s *Server) handleDAppSession(req *Request) (interface{}, *Error) {
	var p DAppOriginParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	session := s.bridge.Find(p.Origin)
	if session == nil {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("no session for origin %q", p.Origin)}
	}
	return session, nil
}

func (s *Server) handleDAppSetChain(req *Request) (interface{}, *Error) {
	var p DAppSetChainParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return s.bridge.SetChain(p.Origin, p.ChainID), nil
}

func (s *Server) handleDAppSetAccount(req *Request) (interface{}, *Error) {
	var p DAppSetAccountParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	return s.bridge.SetAccount(p.Origin, p.Account), nil
}

// ── TxHub handlers ──────────────────────────────────────────────────────

func (s *Server) handleTxHubPending(_ *Request) (interface{}, *Error) {
	pending, err := s.hub.Pending()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return pending, nil
}

func (s *Server) handleTxHubClear(req *Request) (interface{}, *Error) {
	var p TxHashParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.hub.Clear(p.Hash); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return true, nil
}
