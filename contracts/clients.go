package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/interfaces"
)

// RegisterCall is the full registrar register/makeCommitment argument tuple.
// The reveal must reuse the exact tuple the fingerprint was derived from;
// any divergence, even reordering Data, yields a different fingerprint and a
// chain-side rejection.
type RegisterCall struct {
	Label         string
	Owner         common.Address
	Duration      *big.Int
	SecretHash    common.Hash
	Resolver      common.Address
	Data          [][]byte
	ReverseRecord bool
	Fuses         uint16
}

func (rc RegisterCall) args() []interface{} {
	return []interface{}{
		rc.Label, rc.Owner, rc.Duration, [32]byte(rc.SecretHash),
		rc.Resolver, rc.Data, rc.ReverseRecord, rc.Fuses,
	}
}

// RegistrarClient wraps a TLD's registrar controller.
type RegistrarClient struct {
	caller *Caller
	Handle Handle
}

// NewRegistrarClient builds a client over a resolved controller handle.
func NewRegistrarClient(caller *Caller, h Handle) *RegistrarClient {
	return &RegistrarClient{caller: caller, Handle: h}
}

// MinCommitmentAge reads the registrar's minimum commitment age in seconds.
func (c *RegistrarClient) MinCommitmentAge(ctx context.Context) (*big.Int, error) {
	return c.readBigInt(ctx, "minCommitmentAge")
}

// MaxCommitmentAge reads the registrar's maximum commitment age in seconds.
func (c *RegistrarClient) MaxCommitmentAge(ctx context.Context) (*big.Int, error) {
	return c.readBigInt(ctx, "maxCommitmentAge")
}

// CommitmentTimestamp reads the on-chain first-seen timestamp of a
// commitment fingerprint. Zero means the fingerprint is unknown (or already
// consumed).
func (c *RegistrarClient) CommitmentTimestamp(ctx context.Context, fingerprint common.Hash) (*big.Int, error) {
	results, err := c.caller.Call(ctx, c.Handle, "commitments", [32]byte(fingerprint))
	if err != nil {
		return nil, err
	}
	return toBigInt(results[0])
}

// Available reports whether a label is open for registration.
func (c *RegistrarClient) Available(ctx context.Context, label string) (bool, error) {
	results, err := c.caller.Call(ctx, c.Handle, "available", label)
	if err != nil {
		return false, err
	}
	ok, isBool := results[0].(bool)
	if !isBool {
		return false, fmt.Errorf("%w: available returned %T", interfaces.ErrChainRead, results[0])
	}
	return ok, nil
}

// RentPrice quotes the registration price for label over duration seconds.
func (c *RegistrarClient) RentPrice(ctx context.Context, label string, duration *big.Int) (interfaces.PriceQuote, error) {
	results, err := c.caller.Call(ctx, c.Handle, "rentPrice", label, duration)
	if err != nil {
		return interfaces.PriceQuote{}, err
	}
	price := abi.ConvertType(results[0], new(struct {
		Base    *big.Int
		Premium *big.Int
	})).(*struct {
		Base    *big.Int
		Premium *big.Int
	})
	return interfaces.PriceQuote{Base: price.Base, Premium: price.Premium}, nil
}

// MakeCommitment derives the commitment fingerprint through the registrar's
// pure commitment function. Read-only and idempotent: identical inputs yield
// the identical fingerprint.
func (c *RegistrarClient) MakeCommitment(ctx context.Context, call RegisterCall) (common.Hash, error) {
	results, err := c.caller.Call(ctx, c.Handle, "makeCommitment", call.args()...)
	if err != nil {
		return common.Hash{}, err
	}
	fp, ok := results[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: makeCommitment returned %T", interfaces.ErrChainRead, results[0])
	}
	return common.Hash(fp), nil
}

// PackCommit encodes the commit transaction calldata.
func (c *RegistrarClient) PackCommit(fingerprint common.Hash) ([]byte, error) {
	return c.Handle.Pack("commit", [32]byte(fingerprint))
}

// PackRegister encodes the reveal (register) transaction calldata.
func (c *RegistrarClient) PackRegister(call RegisterCall) ([]byte, error) {
	return c.Handle.Pack("register", call.args()...)
}

// PackRenew encodes the renew transaction calldata.
func (c *RegistrarClient) PackRenew(label string, duration *big.Int) ([]byte, error) {
	return c.Handle.Pack("renew", label, duration)
}

func (c *RegistrarClient) readBigInt(ctx context.Context, method string) (*big.Int, error) {
	results, err := c.caller.Call(ctx, c.Handle, method)
	if err != nil {
		return nil, err
	}
	return toBigInt(results[0])
}

// RegistryClient wraps the shared naming registry.
type RegistryClient struct {
	caller *Caller
	Handle Handle
}

func NewRegistryClient(caller *Caller, h Handle) *RegistryClient {
	return &RegistryClient{caller: caller, Handle: h}
}

// Owner reads the registry owner of a node.
func (c *RegistryClient) Owner(ctx context.Context, node common.Hash) (common.Address, error) {
	return c.readAddress(ctx, "owner", node)
}

// ResolverAddr reads the resolver configured for a node.
func (c *RegistryClient) ResolverAddr(ctx context.Context, node common.Hash) (common.Address, error) {
	return c.readAddress(ctx, "resolver", node)
}

// TTL reads the registry TTL of a node.
func (c *RegistryClient) TTL(ctx context.Context, node common.Hash) (uint64, error) {
	results, err := c.caller.Call(ctx, c.Handle, "ttl", [32]byte(node))
	if err != nil {
		return 0, err
	}
	ttl, ok := results[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("%w: ttl returned %T", interfaces.ErrChainRead, results[0])
	}
	return ttl, nil
}

// PackSetOwner encodes a direct registry ownership transfer.
func (c *RegistryClient) PackSetOwner(node common.Hash, newOwner common.Address) ([]byte, error) {
	return c.Handle.Pack("setOwner", [32]byte(node), newOwner)
}

func (c *RegistryClient) readAddress(ctx context.Context, method string, node common.Hash) (common.Address, error) {
	results, err := c.caller.Call(ctx, c.Handle, method, [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s returned %T", interfaces.ErrChainRead, method, results[0])
	}
	return addr, nil
}

// WrapperClient wraps a TLD's name wrapper.
type WrapperClient struct {
	caller *Caller
	Handle Handle
}

func NewWrapperClient(caller *Caller, h Handle) *WrapperClient {
	return &WrapperClient{caller: caller, Handle: h}
}

// OwnerOf reads the wrapper's token owner for a node. The wrapper's token id
// is the node interpreted as uint256.
func (c *WrapperClient) OwnerOf(ctx context.Context, node common.Hash) (common.Address, error) {
	id := new(big.Int).SetBytes(node.Bytes())
	results, err := c.caller.Call(ctx, c.Handle, "ownerOf", id)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: ownerOf returned %T", interfaces.ErrChainRead, results[0])
	}
	return addr, nil
}

// PackSetRecord encodes a wrapped-name ownership transfer preserving the
// given resolver and TTL.
func (c *WrapperClient) PackSetRecord(node common.Hash, newOwner, resolver common.Address, ttl uint64) ([]byte, error) {
	return c.Handle.Pack("setRecord", [32]byte(node), newOwner, resolver, ttl)
}

// BaseRegistrarClient wraps the shared base registrar's ERC-721 surface.
type BaseRegistrarClient struct {
	caller *Caller
	Handle Handle
}

func NewBaseRegistrarClient(caller *Caller, h Handle) *BaseRegistrarClient {
	return &BaseRegistrarClient{caller: caller, Handle: h}
}

// OwnerOf reads the registrant of a label's token.
func (c *BaseRegistrarClient) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	results, err := c.caller.Call(ctx, c.Handle, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: ownerOf returned %T", interfaces.ErrChainRead, results[0])
	}
	return addr, nil
}

// NameExpires reads a token's expiry as a unix timestamp.
func (c *BaseRegistrarClient) NameExpires(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	results, err := c.caller.Call(ctx, c.Handle, "nameExpires", tokenID)
	if err != nil {
		return nil, err
	}
	return toBigInt(results[0])
}

// PackTransferFrom encodes a base-registrar token transfer.
func (c *BaseRegistrarClient) PackTransferFrom(from, to common.Address, tokenID *big.Int) ([]byte, error) {
	return c.Handle.Pack("transferFrom", from, to, tokenID)
}

// ResolverClient wraps a TLD's public resolver, both for record reads and
// for encoding the multicall payloads passed to register.
type ResolverClient struct {
	caller *Caller
	Handle Handle
}

func NewResolverClient(caller *Caller, h Handle) *ResolverClient {
	return &ResolverClient{caller: caller, Handle: h}
}

// Addr reads the address record of a node.
func (c *ResolverClient) Addr(ctx context.Context, node common.Hash) (common.Address, error) {
	results, err := c.caller.Call(ctx, c.Handle, "addr", [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: addr returned %T", interfaces.ErrChainRead, results[0])
	}
	return addr, nil
}

// Text reads a text record of a node.
func (c *ResolverClient) Text(ctx context.Context, node common.Hash, key string) (string, error) {
	results, err := c.caller.Call(ctx, c.Handle, "text", [32]byte(node), key)
	if err != nil {
		return "", err
	}
	value, ok := results[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: text returned %T", interfaces.ErrChainRead, results[0])
	}
	return value, nil
}

// EncodeSetAddr encodes setAddr(node, 60, addressBytes): the coin-type-60
// address record written during registration.
func (c *ResolverClient) EncodeSetAddr(node common.Hash, addr common.Address) ([]byte, error) {
	return c.Handle.Pack("setAddr", [32]byte(node), big.NewInt(60), addr.Bytes())
}

// EncodeSetText encodes setText(node, key, value).
func (c *ResolverClient) EncodeSetText(node common.Hash, key, value string) ([]byte, error) {
	return c.Handle.Pack("setText", [32]byte(node), key, value)
}

func toBigInt(v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: expected *big.Int, got %T", interfaces.ErrChainRead, v)
	}
	return n, nil
}
