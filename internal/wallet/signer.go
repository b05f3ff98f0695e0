package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/wallet3/wallet3d/internal/keystore"
	"github.com/wallet3/wallet3d/internal/txhub"
)

// TypedDataVersion selects the EIP-712 encoding revision.
type TypedDataVersion string

const (
	// TypedDataV1 is the pre-EIP-712 array encoding. Not supported.
	TypedDataV1 TypedDataVersion = "v1"
	// TypedDataV3 is EIP-712 without array support. Hashed identically to
	// V4 here.
	TypedDataV3 TypedDataVersion = "v3"
	// TypedDataV4 is full EIP-712. The default.
	TypedDataV4 TypedDataVersion = "v4"
)

// SignTxRequest asks for a signature over tx with the account at Index.
type SignTxRequest struct {
	Index uint32
	Tx    *types.Transaction
	Pin   string
}

// SignMessageRequest asks for a message signature with the account at Index.
//
// Raw is set when the caller supplied raw bytes rather than text. Standard
// forces the EIP-191 personal-sign path even for raw bytes. A raw,
// non-standard request signs a bare 32-byte digest with no prefix, which is
// only ever safe when the digest cannot be a transaction.
type SignMessageRequest struct {
	Index    uint32
	Msg      []byte
	Raw      bool
	Standard bool
	Pin      string
}

// SignTypedDataRequest asks for an EIP-712 signature with the account at
// Index. TypedData is the JSON payload as received from the DApp.
type SignTypedDataRequest struct {
	Index     uint32
	TypedData json.RawMessage
	Version   TypedDataVersion
	Pin       string
}

// SendTxRequest signs tx and hands it to the dispatch seam.
type SendTxRequest struct {
	Index        uint32
	Tx           *types.Transaction
	Pin          string
	ReadableInfo txhub.ReadableInfo
}

// SignTx signs the transaction and returns the signed tx as a 0x hex
// string. The signer is chosen from the transaction's chain id.
func (w *Wallet) SignTx(ctx context.Context, req SignTxRequest) (string, error) {
	if req.Tx == nil {
		return "", newError(ErrKindMalformed, "sign tx: missing transaction")
	}
	chainID := req.Tx.ChainId()
	if chainID == nil || chainID.Sign() <= 0 {
		return "", newError(ErrKindMalformed, "sign tx: missing chain id")
	}

	priv, err := w.unlock(ctx, req.Pin, req.Index)
	if err != nil {
		return "", err
	}
	defer zeroPrivateKey(priv)

	signed, err := types.SignTx(req.Tx, types.LatestSignerForChainID(chainID), priv)
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign tx")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "encode signed tx")
	}

	w.logger.Debug().
		Uint32("index", req.Index).
		Str("hash", signed.Hash().Hex()).
		Uint64("chain_id", chainID.Uint64()).
		Msg("Transaction signed")

	return hexutil.Encode(raw), nil
}

// SendTx signs the transaction and broadcasts it, returning the tx hash.
func (w *Wallet) SendTx(ctx context.Context, req SendTxRequest) (common.Hash, error) {
	if w.sender == nil {
		return common.Hash{}, newError(ErrKindBroadcast, "send tx: no broadcaster configured")
	}

	txHex, err := w.SignTx(ctx, SignTxRequest{Index: req.Index, Tx: req.Tx, Pin: req.Pin})
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := w.sender.BroadcastTx(ctx, txhub.BroadcastRequest{
		ChainID:      req.Tx.ChainId(),
		TxHex:        txHex,
		Tx:           req.Tx,
		ReadableInfo: req.ReadableInfo,
	})
	if err != nil {
		return common.Hash{}, wrapError(ErrKindBroadcast, err, "send tx")
	}
	return hash, nil
}

// SignMessage signs a message and returns the 65-byte signature as a 0x hex
// string, with the recovery id in the Ethereum 27/28 convention.
//
// The raw non-standard path signs the bytes as a bare digest. Anything that
// parses as a transaction is refused there: a bare-digest signature over
// transaction bytes is a hidden transaction approval.
func (w *Wallet) SignMessage(ctx context.Context, req SignMessageRequest) (string, error) {
	if req.Raw && !req.Standard {
		return w.signDigest(ctx, req)
	}
	return w.signPersonal(ctx, req)
}

func (w *Wallet) signDigest(ctx context.Context, req SignMessageRequest) (string, error) {
	if parsesAsTransaction(req.Msg) {
		w.logger.Warn().
			Uint32("index", req.Index).
			Int("size", len(req.Msg)).
			Msg("Rejected raw signing of transaction bytes")
		return "", newError(ErrKindDangerous, "sign message: payload parses as a transaction, refusing raw signature")
	}
	if len(req.Msg) != ethcrypto.DigestLength {
		return "", newError(ErrKindMalformed, "sign message: raw payload must be a %d-byte digest, got %d bytes", ethcrypto.DigestLength, len(req.Msg))
	}

	priv, err := w.unlock(ctx, req.Pin, req.Index)
	if err != nil {
		return "", err
	}
	defer zeroPrivateKey(priv)

	sig, err := ethcrypto.Sign(req.Msg, priv)
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign digest")
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

func (w *Wallet) signPersonal(ctx context.Context, req SignMessageRequest) (string, error) {
	msg := req.Msg
	// Text that is itself hex data is signed as the bytes it denotes, the
	// way in-page providers present eth hashes and payloads.
	if !req.Raw && isHexBytes(string(msg)) {
		decoded, err := hexutil.Decode(string(msg))
		if err != nil {
			return "", wrapError(ErrKindMalformed, err, "sign message: decode hex payload")
		}
		msg = decoded
	}

	priv, err := w.unlock(ctx, req.Pin, req.Index)
	if err != nil {
		return "", err
	}
	defer zeroPrivateKey(priv)

	sig, err := ethcrypto.Sign(accounts.TextHash(msg), priv)
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign message")
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// SignTypedData signs an EIP-712 payload and returns the 65-byte signature
// as a 0x hex string. An empty version means V4; V3 payloads hash the same
// way. V1 is refused.
func (w *Wallet) SignTypedData(ctx context.Context, req SignTypedDataRequest) (string, error) {
	switch req.Version {
	case "", TypedDataV3, TypedDataV4:
	case TypedDataV1:
		return "", newError(ErrKindMalformed, "sign typed data: version v1 is not supported")
	default:
		return "", newError(ErrKindMalformed, "sign typed data: unknown version %q", req.Version)
	}

	var td apitypes.TypedData
	if err := json.Unmarshal(req.TypedData, &td); err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign typed data: parse payload")
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign typed data: hash payload")
	}

	priv, err := w.unlock(ctx, req.Pin, req.Index)
	if err != nil {
		return "", err
	}
	defer zeroPrivateKey(priv)

	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return "", wrapError(ErrKindMalformed, err, "sign typed data")
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// GetSecret reveals the backing secret: the mnemonic for HD wallets, the
// private key hex for simple wallets.
func (w *Wallet) GetSecret(ctx context.Context, pin string) (string, error) {
	plain, err := w.auth.Decrypt(ctx, w.key.SecretEnc, pin)
	if err != nil {
		return "", authError(err, "reveal secret")
	}
	return string(plain), nil
}

// unlock materializes the private key for the account at index. HD wallets
// decrypt the extended private key and derive the child; simple wallets
// decrypt the stored key directly. The caller must zero the result.
func (w *Wallet) unlock(ctx context.Context, pin string, index uint32) (*ecdsa.PrivateKey, error) {
	if !w.key.IsHD() {
		secret, err := w.auth.Decrypt(ctx, w.key.SecretEnc, pin)
		if err != nil {
			return nil, authError(err, "unlock key")
		}
		defer keystore.ZeroBytes(secret)

		priv, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(secret)), "0x"))
		if err != nil {
			return nil, wrapError(ErrKindMalformed, err, "unlock key: parse private key")
		}
		return priv, nil
	}

	xpriv, err := w.auth.Decrypt(ctx, w.key.XPrivEnc, pin)
	if err != nil {
		return nil, authError(err, "unlock key")
	}
	defer keystore.ZeroBytes(xpriv)

	priv, err := keystore.DeriveChildPrivateKey(string(xpriv), index)
	if err != nil {
		return nil, wrapError(ErrKindMalformed, err, "unlock key: derive account %d", index)
	}
	return priv, nil
}

func authError(err error, op string) *Error {
	if errors.Is(err, keystore.ErrNoKeyMaterial) {
		return wrapError(ErrKindNotFound, err, "%s", op)
	}
	return wrapError(ErrKindAuth, err, "%s", op)
}

// parsesAsTransaction reports whether data decodes as an Ethereum
// transaction, legacy RLP or typed envelope.
func parsesAsTransaction(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	tx := new(types.Transaction)
	return tx.UnmarshalBinary(data) == nil
}

// isHexBytes reports whether s denotes 0x-prefixed byte data.
func isHexBytes(s string) bool {
	if len(s) < 2 || len(s)%2 != 0 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func zeroPrivateKey(priv *ecdsa.PrivateKey) {
	if priv != nil && priv.D != nil {
		priv.D.SetInt64(0)
	}
}
