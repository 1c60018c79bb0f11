package registration

import (
	"context"
	"log/slog"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/interfaces"
)

// DefaultRevealGasLimit is used when gas estimation for the reveal call
// fails.
const DefaultRevealGasLimit = 500_000

// Guard decides whether a reveal transaction may proceed and with which
// value and gas limit.
type Guard struct {
	backend         interfaces.ChainBackend
	log             *slog.Logger
	defaultGasLimit uint64
}

// NewGuard creates a payment/gas guard over the chain backend.
func NewGuard(backend interfaces.ChainBackend, log *slog.Logger) *Guard {
	return &Guard{backend: backend, log: log, defaultGasLimit: DefaultRevealGasLimit}
}

// Authorization is a granted reveal budget.
type Authorization struct {
	Value    *big.Int
	GasLimit uint64
	// BufferSkipped records that the balance covered the price but not the
	// heuristic gas buffer, and the guard let the reveal through on the
	// single relaxed re-check.
	BufferSkipped bool
}

// Authorize checks the wallet balance against price plus a 5% gas buffer and
// estimates gas for the exact reveal call. The buffer is a heuristic, not an
// on-chain requirement, so a balance covering the price but not the buffer
// passes on a single relaxed re-check; a balance below the price fails with
// the exact shortfall.
func (g *Guard) Authorize(ctx context.Context, from common.Address, price *big.Int, msg ethereum.CallMsg) (Authorization, error) {
	balance, err := g.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return Authorization{}, interfaces.ClassifyTxError(err)
	}

	gasBuffer := new(big.Int).Div(price, big.NewInt(20))
	totalCost := new(big.Int).Add(price, gasBuffer)

	gasLimit := g.defaultGasLimit
	msg.From = from
	msg.Value = price
	if estimated, err := g.backend.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100
	} else {
		g.log.Warn("Gas estimation failed, using default limit",
			"defaultGasLimit", g.defaultGasLimit, "err", err)
	}

	auth := Authorization{Value: price, GasLimit: gasLimit}
	if balance.Cmp(totalCost) < 0 {
		if balance.Cmp(price) < 0 {
			return Authorization{}, &interfaces.InsufficientBalanceError{
				Balance:  balance,
				Required: totalCost,
			}
		}
		// Only the buffer is short.
		g.log.Info("Balance below price plus buffer, proceeding on relaxed check",
			"balance", interfaces.FormatNative(balance),
			"price", interfaces.FormatNative(price),
			"buffer", interfaces.FormatNative(gasBuffer))
		auth.BufferSkipped = true
	}
	return auth, nil
}
