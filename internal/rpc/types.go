package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wallet3/wallet3d/internal/txhub"
	"github.com/wallet3/wallet3d/internal/wallet"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeAuthFailed     = -32001
	CodeDangerous      = -32002
	CodeBroadcast      = -32003
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// walletError maps a wallet failure to a JSON-RPC error.
func walletError(err error) *Error {
	var we *wallet.Error
	if !errors.As(err, &we) {
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
	code := CodeInternalError
	switch we.Kind {
	case wallet.ErrKindAuth:
		code = CodeAuthFailed
	case wallet.ErrKindDangerous:
		code = CodeDangerous
	case wallet.ErrKindMalformed:
		code = CodeInvalidParams
	case wallet.ErrKindBroadcast:
		code = CodeBroadcast
	case wallet.ErrKindNotFound:
		code = CodeNotFound
	}
	return &Error{Code: code, Message: we.Error()}
}

// ── Param types ─────────────────────────────────────────────────────────

// WalletCreateParam is used by wallet_create.
type WalletCreateParam struct {
	Mnemonic   string `json:"mnemonic,omitempty"` // Empty generates a new one.
	Passphrase string `json:"passphrase,omitempty"`
	BasePath   string `json:"base_path,omitempty"`
	BaseIndex  uint32 `json:"base_index,omitempty"`
	Pin        string `json:"pin"`
}

// WalletImportParam is used by wallet_import.
type WalletImportParam struct {
	PrivateKey string `json:"private_key"`
	Pin        string `json:"pin"`
}

// KeyParam is used by endpoints that address a wallet by key id.
type KeyParam struct {
	KeyID string `json:"key_id"`
}

// SecretParam is used by wallet_getSecret.
type SecretParam struct {
	KeyID string `json:"key_id"`
	Pin   string `json:"pin"`
}

// AccountParam is used by wallet_removeAccount.
type AccountParam struct {
	KeyID   string `json:"key_id"`
	Address string `json:"address"`
}

// TxParam is an unsigned EIP-1559 transaction in request form.
type TxParam struct {
	ChainID              uint64 `json:"chain_id"`
	Nonce                uint64 `json:"nonce"`
	To                   string `json:"to,omitempty"` // Empty means contract creation.
	Value                string `json:"value,omitempty"`
	Gas                  uint64 `json:"gas"`
	MaxFeePerGas         string `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
	Data                 string `json:"data,omitempty"` // 0x hex.
}

// SignTxParam is used by wallet_signTx.
type SignTxParam struct {
	KeyID string  `json:"key_id"`
	Index uint32  `json:"index"`
	Tx    TxParam `json:"tx"`
	Pin   string  `json:"pin"`
}

// SendTxParam is used by wallet_sendTx.
type SendTxParam struct {
	KeyID        string              `json:"key_id"`
	Index        uint32              `json:"index"`
	Tx           TxParam             `json:"tx"`
	Pin          string              `json:"pin"`
	ReadableInfo txhub.ReadableInfo  `json:"readable_info,omitempty"`
}

// SignMessageParam is used by wallet_signMessage. When Raw is set, Message
// must be 0x hex and denotes the bytes to sign.
type SignMessageParam struct {
	KeyID    string `json:"key_id"`
	Index    uint32 `json:"index"`
	Message  string `json:"message"`
	Raw      bool   `json:"raw,omitempty"`
	Standard bool   `json:"standard,omitempty"`
	Pin      string `json:"pin"`
}

// SignTypedDataParam is used by wallet_signTypedData.
type SignTypedDataParam struct {
	KeyID     string          `json:"key_id"`
	Index     uint32          `json:"index"`
	TypedData json.RawMessage `json:"typed_data"`
	Version   string          `json:"version,omitempty"`
	Pin       string          `json:"pin"`
}

// DAppConnectParam is used by dapp_connect.
type DAppConnectParam struct {
	Origin        string `json:"origin"`
	ChainID       string `json:"chain_id"`
	Account       string `json:"account"`
	WalletConnect bool   `json:"walletconnect,omitempty"`
	Mobile        bool   `json:"mobile,omitempty"`
}

// DAppOriginParam is used by dapp_session and dapp_disconnect.
type DAppOriginParam struct {
	Origin string `json:"origin"`
}

// DAppSetChainParam is used by dapp_setChain.
type DAppSetChainParam struct {
	Origin  string `json:"origin"`
	ChainID string `json:"chain_id"`
}

// DAppSetAccountParam is used by dapp_setAccount.
type DAppSetAccountParam struct {
	Origin  string `json:"origin"`
	Account string `json:"account"`
}

// TxHashParam is used by txhub_clear.
type TxHashParam struct {
	Hash string `json:"hash"`
}

// ── Result types ────────────────────────────────────────────────────────

// AccountResult is one derived account.
type AccountResult struct {
	Address string `json:"address"`
	Index   uint32 `json:"index"`
}

// WalletResult describes one wallet.
type WalletResult struct {
	KeyID    string          `json:"key_id"`
	Kind     string          `json:"kind"`
	BasePath string          `json:"base_path,omitempty"`
	Accounts []AccountResult `json:"accounts"`
}

// CreateResult is returned by wallet_create.
type CreateResult struct {
	KeyID    string `json:"key_id"`
	Mnemonic string `json:"mnemonic,omitempty"` // Set only when freshly generated.
	Address  string `json:"address"`
}

// SignResult is returned by the signing endpoints.
type SignResult struct {
	Signature string `json:"signature"`
}

// SignTxResult is returned by wallet_signTx.
type SignTxResult struct {
	Raw string `json:"raw"`
}

// SendTxResult is returned by wallet_sendTx.
type SendTxResult struct {
	Hash string `json:"hash"`
}

func newWalletResult(w *wallet.Wallet) WalletResult {
	accounts := w.Accounts()
	res := WalletResult{
		KeyID:    w.Key().ID,
		Kind:     w.Key().Kind.String(),
		BasePath: w.Key().BasePath,
		Accounts: make([]AccountResult, len(accounts)),
	}
	for i, a := range accounts {
		res.Accounts[i] = AccountResult{Address: a.Address.Hex(), Index: a.Index}
	}
	return res
}

// buildTx converts a TxParam into a transaction.
func buildTx(p TxParam) (*types.Transaction, *Error) {
	if p.ChainID == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "tx.chain_id required"}
	}
	if p.Gas == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "tx.gas required"}
	}

	value, err := parseBig(p.Value)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("tx.value: %v", err)}
	}
	feeCap, err := parseBig(p.MaxFeePerGas)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("tx.max_fee_per_gas: %v", err)}
	}
	tipCap, err := parseBig(p.MaxPriorityFeePerGas)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("tx.max_priority_fee_per_gas: %v", err)}
	}

	var to *common.Address
	if p.To != "" {
		if !common.IsHexAddress(p.To) {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("tx.to %q is not an address", p.To)}
		}
		addr := common.HexToAddress(p.To)
		to = &addr
	}

	var data []byte
	if p.Data != "" {
		data, err = hexutil.Decode(p.Data)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("tx.data: %v", err)}
		}
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(p.ChainID),
		Nonce:     p.Nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       p.Gas,
		To:        to,
		Value:     value,
		Data:      data,
	}), nil
}

// parseBig parses a decimal or 0x-prefixed amount. Empty means zero.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}
