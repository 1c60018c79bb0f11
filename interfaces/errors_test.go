package interfaces

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTxError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected RevertClass
	}{
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), RevertFunds},
		{"insufficient balance", errors.New("Insufficient Balance"), RevertFunds},
		{"nonce too low", errors.New("nonce too low"), RevertNonce},
		{"gas limit", errors.New("exceeds block gas limit"), RevertGas},
		{"execution revert", errors.New("execution reverted: CommitmentTooNew"), RevertExecution},
		{"unknown", errors.New("connection reset by peer"), RevertUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyTxError(tt.err)
			var revertErr *TransactionRevertedError
			require.True(t, errors.As(classified, &revertErr))
			assert.Equal(t, tt.expected, revertErr.Class)
		})
	}
}

func TestClassifyTxError_UserRejected(t *testing.T) {
	assert.ErrorIs(t, ClassifyTxError(errors.New("user rejected transaction")), ErrUserRejected)
	assert.ErrorIs(t, ClassifyTxError(errors.New("User denied transaction signature")), ErrUserRejected)
	assert.ErrorIs(t, ClassifyTxError(fmt.Errorf("wrapped: %w", ErrUserRejected)), ErrUserRejected)
}

func TestClassifyTxError_Nil(t *testing.T) {
	assert.NoError(t, ClassifyTxError(nil))
}

func TestInsufficientBalanceError(t *testing.T) {
	err := &InsufficientBalanceError{
		Balance:  big.NewInt(1_000_000_000_000_000_000), // 1.0
		Required: big.NewInt(1_500_000_000_000_000_000), // 1.5
	}
	assert.Equal(t, big.NewInt(500_000_000_000_000_000), err.Shortfall())
	assert.Contains(t, err.Error(), "have 1.000000")
	assert.Contains(t, err.Error(), "need 1.500000")
	assert.Contains(t, err.Error(), "short 0.500000")
}

func TestFormatNative(t *testing.T) {
	assert.Equal(t, "0", FormatNative(nil))
	assert.Equal(t, "0.000000", FormatNative(big.NewInt(0)))
	assert.Equal(t, "1.000000", FormatNative(big.NewInt(1_000_000_000_000_000_000)))
	assert.Equal(t, "0.050000", FormatNative(big.NewInt(50_000_000_000_000_000)))
}

func TestNormalizeLabel(t *testing.T) {
	tlds := []string{".hii", ".hi"}
	assert.Equal(t, "alice", NormalizeLabel("  Alice  ", tlds))
	assert.Equal(t, "alice", NormalizeLabel("alice.hii", tlds))
	assert.Equal(t, "al-ice42", NormalizeLabel("Al-Ice42!", tlds))
	assert.Equal(t, "", NormalizeLabel("...", tlds))
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseSucceeded.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseForm.Terminal())
	assert.False(t, PhaseWaiting.Terminal())
}

func TestPriceQuoteTotal(t *testing.T) {
	q := PriceQuote{Base: big.NewInt(100), Premium: big.NewInt(25)}
	assert.Equal(t, big.NewInt(125), q.Total())
}
