package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

var (
	controllerAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wrapperAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	resolverAddr   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	registryAddr   = common.HexToAddress("0x7777777777777777777777777777777777777777")
	baseAddr       = common.HexToAddress("0x8888888888888888888888888888888888888888")
	walletAddr     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	doc *tldconfig.Document
}

func (s staticSource) Fetch(ctx context.Context) (*tldconfig.Document, error) { return s.doc, nil }
func (s staticSource) Name() string                                           { return "static" }

func testDirectory(t *testing.T) *tldconfig.Directory {
	t.Helper()
	doc := &tldconfig.Document{
		TLDs: []tldconfig.TLDRecord{{
			TLD:       ".hii",
			IsPrimary: true,
			Contracts: tldconfig.ContractSet{
				RegistrarController: controllerAddr,
				NameWrapper:         wrapperAddr,
				PublicResolver:      resolverAddr,
			},
		}},
		Registry:      registryAddr,
		BaseRegistrar: baseAddr,
	}
	dir, err := tldconfig.NewDirectory(context.Background(), staticSource{doc}, nil, 0, testLogger())
	require.NoError(t, err)
	return dir
}

// fakeContract answers unpacked calls; the backend packs the outputs back
// through the real interface definition.
type fakeContract struct {
	abi  *abi.ABI
	call func(method string, args []interface{}) ([]interface{}, error)
}

type fakeBackend struct {
	mu        sync.Mutex
	contracts map[common.Address]fakeContract
	balance   *big.Int
	estimate  uint64
	estimErr  error
	headBlock uint64
	logs      []types.Log
	logsErr   error
	receipts  map[common.Hash]*types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		contracts: make(map[common.Address]fakeContract),
		balance:   big.NewInt(0),
		estimate:  100_000,
		receipts:  make(map[common.Hash]*types.Receipt),
	}
}

func (b *fakeBackend) install(addr common.Address, contractABI *abi.ABI, call func(string, []interface{}) ([]interface{}, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contracts[addr] = fakeContract{abi: contractABI, call: call}
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	c, ok := b.contracts[*msg.To]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no contract at %s", msg.To.Hex())
	}
	method, err := c.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	outs, err := c.call(method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(outs...)
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return b.estimate, b.estimErr
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.headBlock, nil
}

func (b *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return b.logs, b.logsErr
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if receipt, ok := b.receipts[txHash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

// fakeWallet signs nothing; it hands back a deterministic hash and plants a
// receipt in the backend so waitReceipt resolves.
type fakeWallet struct {
	mu         sync.Mutex
	backend    *fakeBackend
	sent       []interfaces.TxRequest
	sendErr    error
	nextStatus uint64
}

func newFakeWallet(backend *fakeBackend) *fakeWallet {
	return &fakeWallet{backend: backend, nextStatus: types.ReceiptStatusSuccessful}
}

func (w *fakeWallet) Address() common.Address { return walletAddr }

func (w *fakeWallet) SendTransaction(ctx context.Context, req interfaces.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.sent = append(w.sent, req)
	txHash := crypto.Keccak256Hash(req.Data, []byte{byte(len(w.sent))})
	w.backend.mu.Lock()
	w.backend.receipts[txHash] = &types.Receipt{Status: w.nextStatus, TxHash: txHash}
	w.backend.mu.Unlock()
	return txHash, nil
}

func (w *fakeWallet) requests() []interfaces.TxRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]interfaces.TxRequest(nil), w.sent...)
}

// controllerState scripts the registrar controller's view methods.
type controllerState struct {
	mu        sync.Mutex
	minAge    int64
	maxAge    int64
	commitTs  int64
	available bool
	base      *big.Int
	premium   *big.Int
}

func (s *controllerState) setCommitTs(ts int64) {
	s.mu.Lock()
	s.commitTs = ts
	s.mu.Unlock()
}

func (s *controllerState) handler(method string, args []interface{}) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch method {
	case "minCommitmentAge":
		return []interface{}{big.NewInt(s.minAge)}, nil
	case "maxCommitmentAge":
		return []interface{}{big.NewInt(s.maxAge)}, nil
	case "commitments":
		return []interface{}{big.NewInt(s.commitTs)}, nil
	case "available":
		return []interface{}{s.available}, nil
	case "rentPrice":
		return []interface{}{struct {
			Base    *big.Int
			Premium *big.Int
		}{s.base, s.premium}}, nil
	case "makeCommitment":
		// Deterministic over the full argument tuple, like the contract.
		var fp [32]byte
		copy(fp[:], crypto.Keccak256([]byte(fmt.Sprintf("%v", args))))
		return []interface{}{fp}, nil
	default:
		return nil, fmt.Errorf("unexpected method %s", method)
	}
}

type testEnv struct {
	backend    *fakeBackend
	wallet     *fakeWallet
	controller *controllerState
	registrar  *Registrar
	resolver   *contracts.Resolver
	directory  *tldconfig.Directory
}

func newTestEnv(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	directory := testDirectory(t)
	resolver := contracts.NewResolver(directory, "", testLogger())
	backend := newFakeBackend()
	backend.balance = big.NewInt(1_000_000_000_000_000_000)
	wallet := newFakeWallet(backend)

	controller := &controllerState{
		minAge:    0,
		maxAge:    86400,
		available: true,
		base:      big.NewInt(1000),
		premium:   big.NewInt(0),
	}
	handle, err := resolver.Resolve(context.Background(), ".hii", interfaces.RoleRegistrarController)
	require.NoError(t, err)
	backend.install(controllerAddr, handle.ABI, controller.handler)

	cfg := Config{
		Directory:      directory,
		Contracts:      resolver,
		Backend:        backend,
		Wallet:         wallet,
		Log:            testLogger(),
		CommitBuffer:   time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		ReceiptTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testEnv{
		backend:    backend,
		wallet:     wallet,
		controller: controller,
		registrar:  New(cfg),
		resolver:   resolver,
		directory:  directory,
	}
}

func TestMachine_HappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))
	assert.Equal(t, interfaces.PhaseReadyToReveal, session.Phase())

	env.controller.setCommitTs(time.Now().Unix() - 10)
	require.NoError(t, env.registrar.Reveal(ctx, session))

	view := session.Snapshot()
	assert.Equal(t, interfaces.PhaseSucceeded, view.Phase)
	assert.NotEqual(t, common.Hash{}, view.CommitTx)
	assert.NotEqual(t, common.Hash{}, view.RevealTx)
	assert.NotEqual(t, view.CommitTx, view.RevealTx)

	sent := env.wallet.requests()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(CommitGasLimit), sent[0].GasLimit)
	assert.Nil(t, sent[0].Value)
	assert.Equal(t, big.NewInt(1000), sent[1].Value)
	assert.Equal(t, uint64(120_000), sent[1].GasLimit, "estimate plus 20%")
}

func TestMachine_RevealValueIgnoresPriceScale(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// A TLD whose oracle reports inflated units. The scale is a display
	// policy; the contract still requires the full oracle quote as value.
	doc := env.directory.Current(ctx)
	doc.TLDs[0].PriceScaleDiv = 1_000_000
	env.controller.mu.Lock()
	env.controller.base = big.NewInt(5_000_000_000)
	env.controller.mu.Unlock()

	price, err := env.registrar.Quote(ctx, "alice", ".hii", 365*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000_000), price, "quote stays in oracle units")

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))
	env.controller.setCommitTs(time.Now().Unix() - 10)
	require.NoError(t, env.registrar.Reveal(ctx, session))

	sent := env.wallet.requests()
	require.Len(t, sent, 2)
	assert.Equal(t, big.NewInt(5_000_000_000), sent[1].Value, "reveal pays the raw oracle quote")
}

func TestMachine_CommitmentNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))

	// Chain never saw the fingerprint (e.g. reorged away).
	env.controller.setCommitTs(0)
	err = env.registrar.Reveal(ctx, session)
	assert.True(t, errors.Is(err, interfaces.ErrCommitmentNotFound))
	assert.Equal(t, interfaces.PhaseFailed, session.Phase())

	// The reveal was never submitted.
	assert.Len(t, env.wallet.requests(), 1)
}

func TestMachine_CommitmentExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))

	env.controller.setCommitTs(time.Now().Unix() - 200_000) // far past maxAge
	err = env.registrar.Reveal(ctx, session)
	assert.True(t, errors.Is(err, interfaces.ErrCommitmentExpired))
	assert.Equal(t, interfaces.PhaseFailed, session.Phase())
}

func TestMachine_CommitmentTooNew(t *testing.T) {
	frozen := time.Unix(1_700_000_000, 0)
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Now = func() time.Time { return frozen }
	})
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))

	// Commitment registered at the frozen instant with a 1s minimum age:
	// the clock never advances, so the single bounded re-check still finds
	// it immature.
	env.controller.mu.Lock()
	env.controller.minAge = 1
	env.controller.commitTs = frozen.Unix()
	env.controller.mu.Unlock()

	err = env.registrar.Reveal(ctx, session)
	assert.True(t, errors.Is(err, interfaces.ErrCommitmentTooNew))
	assert.Equal(t, interfaces.PhaseFailed, session.Phase())
	assert.Len(t, env.wallet.requests(), 1)
}

func TestMachine_RevealRevertFailsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)
	defer session.Dispose()

	require.NoError(t, env.registrar.Commit(ctx, session))

	env.controller.setCommitTs(time.Now().Unix() - 10)
	env.wallet.mu.Lock()
	env.wallet.nextStatus = types.ReceiptStatusFailed
	env.wallet.mu.Unlock()

	err = env.registrar.Reveal(ctx, session)
	var revertErr *interfaces.TransactionRevertedError
	require.True(t, errors.As(err, &revertErr))
	assert.Equal(t, interfaces.RevertExecution, revertErr.Class)
	assert.Equal(t, interfaces.PhaseFailed, session.Phase())
}

func TestMachine_DisposeCancelsWait(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.FallbackWait = time.Hour
	})
	ctx := context.Background()

	session, err := env.registrar.NewSession(ctx, "alice", ".hii", 365*24*time.Hour, "passphrase", "")
	require.NoError(t, err)

	env.controller.mu.Lock()
	env.controller.minAge = 3600
	env.controller.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- env.registrar.Commit(ctx, session) }()

	time.Sleep(50 * time.Millisecond)
	session.Dispose()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrSessionDisposed))
	case <-time.After(2 * time.Second):
		t.Fatal("commit did not return after dispose")
	}
}

func TestMachine_SessionValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.registrar.NewSession(ctx, "", ".hii", time.Hour, "secret", "")
	assert.ErrorIs(t, err, interfaces.ErrLabelTooShort)

	_, err = env.registrar.NewSession(ctx, "alice", ".hii", time.Hour, "", "")
	assert.Error(t, err)

	_, err = env.registrar.NewSession(ctx, "alice", ".nope", time.Hour, "secret", "")
	assert.True(t, errors.Is(err, interfaces.ErrTLDNotFound))

	noWallet := New(Config{
		Directory: env.directory,
		Contracts: env.resolver,
		Backend:   env.backend,
		Log:       testLogger(),
	})
	_, err = noWallet.NewSession(ctx, "alice", ".hii", time.Hour, "secret", "")
	assert.Error(t, err)
}

func TestMachine_SessionNormalizesLabel(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Pasted suffix, mixed case, and stray characters are cleaned up before
	// the label reaches the commitment.
	session, err := env.registrar.NewSession(ctx, "  Al ice!.hii", ".hii", time.Hour, "secret", "")
	require.NoError(t, err)
	defer session.Dispose()
	assert.Equal(t, "alice", session.label)
	assert.Equal(t, "alice.hii", session.Name())

	// A label below the registrar's minimum is rejected before any write.
	_, err = env.registrar.NewSession(ctx, "ab", ".hii", time.Hour, "secret", "")
	assert.ErrorIs(t, err, interfaces.ErrLabelTooShort)

	// Normalization can shorten a label below the minimum.
	_, err = env.registrar.NewSession(ctx, "a!!b", ".hii", time.Hour, "secret", "")
	assert.ErrorIs(t, err, interfaces.ErrLabelTooShort)
	assert.Len(t, env.wallet.requests(), 0)
}
