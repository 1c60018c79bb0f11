package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrTLDNotFound is returned when a TLD has no directory entry. It is always
// raised to the caller; defaulting silently risks sending funds to the wrong
// contract.
var ErrTLDNotFound = errors.New("tld not configured")

// ErrInterfaceLoad is returned when a contract interface could not be loaded
// for a (TLD, role) pair even after falling back to the default set. Fatal
// for that TLD, not globally.
var ErrInterfaceLoad = errors.New("contract interface unavailable")

// ErrChainRead and ErrChainWrite wrap RPC failures after bounded retries.
var (
	ErrChainRead  = errors.New("chain read failed")
	ErrChainWrite = errors.New("chain write failed")
)

// Commitment timing violations. Both are terminal for the session; a new
// registration must restart from the form phase with a fresh secret.
var (
	ErrCommitmentNotFound = errors.New("commitment not found on chain")
	ErrCommitmentExpired  = errors.New("commitment expired")
	// ErrCommitmentTooNew is raised client-side when the buffered minimum
	// age still has not elapsed after the one bounded re-check; the reveal
	// was never submitted.
	ErrCommitmentTooNew = errors.New("commitment too new")
)

// ErrLabelTooShort is returned when a normalized label is shorter than the
// registrar's minimum. Reported before any chain write happens.
var ErrLabelTooShort = errors.New("label too short")

// ErrUserRejected marks a transaction the user declined in their wallet.
// Terminal for the session but not an error from the system's perspective.
var ErrUserRejected = errors.New("transaction cancelled by user")

// ErrIndexingDegraded marks an indexer failure that is distinct from "no
// results". Non-fatal: it triggers the chain-scan fallback.
var ErrIndexingDegraded = errors.New("indexer degraded")

// InsufficientBalanceError quantifies exactly how short the wallet is.
type InsufficientBalanceError struct {
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	shortfall := new(big.Int).Sub(e.Required, e.Balance)
	return fmt.Sprintf("insufficient balance: have %s, need %s, short %s",
		FormatNative(e.Balance), FormatNative(e.Required), FormatNative(shortfall))
}

// Shortfall returns required - balance.
func (e *InsufficientBalanceError) Shortfall() *big.Int {
	return new(big.Int).Sub(e.Required, e.Balance)
}

// RevertClass buckets chain rejection text into user-actionable causes.
type RevertClass string

const (
	RevertFunds     RevertClass = "insufficient-funds"
	RevertGas       RevertClass = "gas"
	RevertNonce     RevertClass = "nonce"
	RevertExecution RevertClass = "revert"
	RevertUnknown   RevertClass = "unknown"
)

// TransactionRevertedError carries the classified cause of a rejected or
// reverted transaction together with the raw message.
type TransactionRevertedError struct {
	Class  RevertClass
	Detail string
}

func (e *TransactionRevertedError) Error() string {
	switch e.Class {
	case RevertFunds:
		return "transaction failed: insufficient balance for value plus gas"
	case RevertGas:
		return fmt.Sprintf("transaction failed: gas error: %s", e.Detail)
	case RevertNonce:
		return fmt.Sprintf("transaction failed: nonce error: %s", e.Detail)
	case RevertExecution:
		return fmt.Sprintf("transaction failed: contract revert: %s", e.Detail)
	default:
		return fmt.Sprintf("transaction failed: %s", e.Detail)
	}
}

// ClassifyTxError maps an error from the wallet or RPC layer onto the revert
// taxonomy. ErrUserRejected passes through untouched.
func ClassifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserRejected) {
		return ErrUserRejected
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return ErrUserRejected
	case strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient balance"):
		return &TransactionRevertedError{Class: RevertFunds, Detail: err.Error()}
	case strings.Contains(msg, "nonce"):
		return &TransactionRevertedError{Class: RevertNonce, Detail: err.Error()}
	case strings.Contains(msg, "gas"):
		return &TransactionRevertedError{Class: RevertGas, Detail: err.Error()}
	case strings.Contains(msg, "revert"):
		return &TransactionRevertedError{Class: RevertExecution, Detail: err.Error()}
	default:
		return &TransactionRevertedError{Class: RevertUnknown, Detail: err.Error()}
	}
}

// FormatNative renders a wei amount as a decimal native-token string with
// six fractional digits.
func FormatNative(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	return f.Text('f', 6)
}
