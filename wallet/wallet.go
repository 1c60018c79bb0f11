// Package wallet provides a local private-key signer satisfying the client's
// Wallet interface. Key material never leaves this package.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hii-network/go-hns/interfaces"
)

// TxBackend is the node capability a wallet needs to price, sign, and
// broadcast transactions. *ethclient.Client satisfies it.
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// LocalWallet signs with an in-memory secp256k1 key and broadcasts through a
// node backend. Nonces are assigned under a lock so concurrent sends from the
// same wallet stay ordered.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend TxBackend

	mu      sync.Mutex
	chainID *big.Int
}

// NewLocalWallet parses a hex-encoded private key (with or without 0x prefix).
func NewLocalWallet(privateKeyHex string, backend TxBackend) (*LocalWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		backend: backend,
	}, nil
}

func (w *LocalWallet) Address() common.Address {
	return w.address
}

// SendTransaction signs and broadcasts req. When req.GasLimit is zero the
// limit is estimated from the node.
func (w *LocalWallet) SendTransaction(ctx context.Context, req interfaces.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	chainID, err := w.cachedChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: reading chain id: %v", interfaces.ErrChainWrite, err)
	}
	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: reading nonce: %v", interfaces.ErrChainWrite, err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: reading gas price: %v", interfaces.ErrChainWrite, err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  w.address,
			To:    &req.To,
			Value: req.Value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: estimating gas: %v", interfaces.ErrChainWrite, err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    req.Value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: signing transaction: %v", interfaces.ErrChainWrite, err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: broadcasting transaction: %v", interfaces.ErrChainWrite, err)
	}
	return signed.Hash(), nil
}

func (w *LocalWallet) cachedChainID(ctx context.Context) (*big.Int, error) {
	if w.chainID != nil {
		return w.chainID, nil
	}
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	w.chainID = id
	return id, nil
}
