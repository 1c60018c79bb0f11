package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/metrics"
	"github.com/hii-network/go-hns/ownership"
	"github.com/hii-network/go-hns/registration"
	"github.com/hii-network/go-hns/tldconfig"
)

var (
	controllerAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wrapperAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	resolverAddr   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	registryAddr   = common.HexToAddress("0x7777777777777777777777777777777777777777")
	baseAddr       = common.HexToAddress("0x8888888888888888888888888888888888888888")
	ownerAddr      = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	doc *tldconfig.Document
}

func (s staticSource) Fetch(ctx context.Context) (*tldconfig.Document, error) { return s.doc, nil }
func (s staticSource) Name() string                                           { return "static" }

type fakeContract struct {
	abi  *abi.ABI
	call func(method string, args []interface{}) ([]interface{}, error)
}

type fakeBackend struct {
	mu        sync.Mutex
	contracts map[common.Address]fakeContract
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
	return 21_000, nil
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

func (b *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func newTestServer(t *testing.T) (*Server, *fakeBackend, *contracts.Resolver) {
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
	directory, err := tldconfig.NewDirectory(context.Background(), staticSource{doc}, nil, 0, testLogger())
	require.NoError(t, err)

	resolver := contracts.NewResolver(directory, "", testLogger())
	backend := &fakeBackend{contracts: make(map[common.Address]fakeContract)}
	caller := contracts.NewCaller(backend)

	registrar := registration.New(registration.Config{
		Directory: directory,
		Contracts: resolver,
		Backend:   backend,
		Log:       testLogger(),
	})
	engine := ownership.NewEngine(ownership.EngineConfig{
		Caller:    caller,
		Resolver:  resolver,
		Directory: directory,
		Log:       testLogger(),
	})

	cfg := &HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      testLogger(),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}
	srv, err := New(cfg, NewHandler(engine, registrar, testLogger()))
	require.NoError(t, err)
	return srv, backend, resolver
}

func installController(t *testing.T, backend *fakeBackend, resolver *contracts.Resolver, available bool, base int64) {
	t.Helper()
	handle, err := resolver.Resolve(context.Background(), ".hii", interfaces.RoleRegistrarController)
	require.NoError(t, err)
	backend.install(controllerAddr, handle.ABI, func(method string, args []interface{}) ([]interface{}, error) {
		switch method {
		case "available":
			return []interface{}{available}, nil
		case "rentPrice":
			return []interface{}{struct {
				Base    *big.Int
				Premium *big.Int
			}{big.NewInt(base), big.NewInt(0)}}, nil
		}
		return nil, fmt.Errorf("unexpected controller method %s", method)
	})
}

func TestHandler_Available(t *testing.T) {
	srv, backend, resolver := newTestServer(t)
	installController(t, backend, resolver, true, 1000)

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/available", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["available"])
	assert.Equal(t, "alice.hii", resp["name"])
}

func TestHandler_AvailableUnknownTLD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.example/available", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Price(t *testing.T) {
	srv, backend, resolver := newTestServer(t)
	installController(t, backend, resolver, true, 2_000_000_000_000_000_000)

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/price?duration=31536000", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2000000000000000000", resp["price"])
	assert.Equal(t, "2.000000", resp["priceFormatted"])
	assert.Equal(t, float64(31536000), resp["durationSeconds"])
}

func TestHandler_PriceScaledTLD(t *testing.T) {
	srv, backend, resolver := newTestServer(t)
	installController(t, backend, resolver, true, 2_000_000_000_000_000_000)

	// Only the formatted figure is scaled; "price" stays what the chain
	// expects as msg.value.
	ctx := context.Background()
	srv.handler.registrar.Directory().Current(ctx).TLDs[0].PriceScaleDiv = 1_000_000

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/price?duration=31536000", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2000000000000000000", resp["price"])
	assert.Equal(t, "0.000002", resp["priceFormatted"])
}

func TestHandler_PriceBadDuration(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/price?duration=-5", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RequestCounter(t *testing.T) {
	srv, backend, resolver := newTestServer(t)
	installController(t, backend, resolver, true, 1000)

	metricsSrv, err := metrics.New("go-hns", "127.0.0.1:0")
	require.NoError(t, err)
	srv.metricsSrv = metricsSrv

	counter := metricsSrv.Counter(`http_requests_total{route="/api/v1/names/{name}/available"}`)
	before := counter.Get()

	router := srv.getRouter()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/available", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii/available", nil))

	assert.Equal(t, before+2, counter.Get())
}

func TestHandler_DomainsBadAddress(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/domains/not-an-address", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DomainInfo(t *testing.T) {
	srv, backend, resolver := newTestServer(t)
	ctx := context.Background()

	registryHandle, err := resolver.Resolve(ctx, ".hii", interfaces.RoleRegistry)
	require.NoError(t, err)
	backend.install(registryAddr, registryHandle.ABI, func(method string, args []interface{}) ([]interface{}, error) {
		switch method {
		case "owner":
			return []interface{}{ownerAddr}, nil
		case "resolver":
			return []interface{}{resolverAddr}, nil
		}
		return nil, fmt.Errorf("unexpected registry method %s", method)
	})
	resolverHandle, err := resolver.Resolve(ctx, ".hii", interfaces.RolePublicResolver)
	require.NoError(t, err)
	backend.install(resolverAddr, resolverHandle.ABI, func(method string, args []interface{}) ([]interface{}, error) {
		switch method {
		case "addr":
			return []interface{}{ownerAddr}, nil
		case "text":
			return []interface{}{"alice@example.com"}, nil
		}
		return nil, fmt.Errorf("unexpected resolver method %s", method)
	})
	baseHandle, err := resolver.Resolve(ctx, ".hii", interfaces.RoleBaseRegistrar)
	require.NoError(t, err)
	backend.install(baseAddr, baseHandle.ABI, func(method string, args []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(0)}, nil
	})

	rec := httptest.NewRecorder()
	srv.getRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/names/alice.hii", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice.hii", resp.Name)
	assert.Equal(t, ownerAddr.Hex(), resp.EffectiveOwner)
	assert.False(t, resp.Wrapped)
	assert.Equal(t, contracts.NameHash("alice.hii").Hex(), resp.Node)
	assert.Equal(t, ownerAddr.Hex(), resp.ForwardAddr)
	assert.Equal(t, "alice@example.com", resp.Email)
}

func TestServer_HealthAndDrain(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.getRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/undrain", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
