package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/interfaces"
)

const (
	defaultCallTimeout = 15 * time.Second
	defaultCallRetries = 2
)

// Caller executes read-only contract calls with a bounded per-call timeout
// and a small bounded retry count.
type Caller struct {
	backend interfaces.ChainBackend
	timeout time.Duration
	retries uint64
}

// NewCaller wraps a chain backend. Zero timeout and retries use defaults.
func NewCaller(backend interfaces.ChainBackend) *Caller {
	return &Caller{backend: backend, timeout: defaultCallTimeout, retries: defaultCallRetries}
}

// WithTimeout returns a copy with the given per-call timeout.
func (c *Caller) WithTimeout(d time.Duration) *Caller {
	out := *c
	out.timeout = d
	return &out
}

// Backend exposes the wrapped chain backend for callers that need raw
// primitives (gas estimation, balance, log filtering).
func (c *Caller) Backend() interfaces.ChainBackend {
	return c.backend
}

// Call packs a method call against the handle's interface, executes it as an
// eth_call at the latest block, and unpacks the results. RPC failures are
// retried with exponential backoff before surfacing as ErrChainRead.
func (c *Caller) Call(ctx context.Context, h Handle, method string, args ...interface{}) ([]interface{}, error) {
	input, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", interfaces.ErrChainRead, method, err)
	}

	var output []byte
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		output, err = c.backend.CallContract(callCtx, ethereum.CallMsg{To: &h.Address, Data: input}, nil)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", interfaces.ErrChainRead, method, h.Address, err)
	}

	results, err := h.ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %v", interfaces.ErrChainRead, method, err)
	}
	return results, nil
}

// Pack encodes calldata for a state-changing method on the handle.
func (h Handle) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	return data, nil
}

// EventTopic returns the topic0 hash of a named event in the handle's
// interface, or the zero hash when absent.
func (h Handle) EventTopic(name string) common.Hash {
	ev, ok := h.ABI.Events[name]
	if !ok {
		return common.Hash{}
	}
	return ev.ID
}
