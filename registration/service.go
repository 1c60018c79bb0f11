package registration

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
)

// Available reports whether label is open for registration under tld.
func (r *Registrar) Available(ctx context.Context, label, tld string) (bool, error) {
	registrar, _, err := r.writeClients(ctx, tld)
	if err != nil {
		return false, err
	}
	return registrar.Available(ctx, label)
}

// Quote returns the total rent price for label over duration, in the
// registrar oracle's own units. Callers presenting the value apply the TLD's
// price scale; the raw quote is what the chain expects as msg.value.
func (r *Registrar) Quote(ctx context.Context, label, tld string, duration time.Duration) (*big.Int, error) {
	registrar, _, err := r.writeClients(ctx, tld)
	if err != nil {
		return nil, err
	}
	quote, err := registrar.RentPrice(ctx, label, big.NewInt(int64(duration.Seconds())))
	if err != nil {
		return nil, err
	}
	return quote.Total(), nil
}

// Renew extends a registration by duration, paying the oracle's rent price.
func (r *Registrar) Renew(ctx context.Context, label, tld string, duration time.Duration) (common.Hash, error) {
	registrar, _, err := r.writeClients(ctx, tld)
	if err != nil {
		return common.Hash{}, err
	}
	price, err := r.Quote(ctx, label, tld, duration)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := registrar.PackRenew(label, big.NewInt(int64(duration.Seconds())))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err)
	}
	return r.sendAndConfirm(ctx, interfaces.TxRequest{
		To:    registrar.Handle.Address,
		Data:  data,
		Value: price,
	})
}

// Transfer moves ownership of fullName to newOwner, picking the path the
// domain's current ownership shape requires: a direct registry setOwner, a
// base-registrar token transfer when the caller is the registrant of a
// wrapped name, or a wrapper setRecord preserving the current resolver and
// TTL otherwise.
func (r *Registrar) Transfer(ctx context.Context, fullName string, newOwner common.Address) (common.Hash, error) {
	doc := r.cfg.Directory.Current(ctx)
	label, rec, err := doc.SplitName(fullName)
	if err != nil {
		return common.Hash{}, err
	}
	node := contracts.NameHash(fullName)

	registryHandle, err := r.cfg.Contracts.Resolve(ctx, rec.TLD, interfaces.RoleRegistry)
	if err != nil {
		return common.Hash{}, err
	}
	registry := contracts.NewRegistryClient(r.caller, registryHandle)

	directOwner, err := registry.Owner(ctx, node)
	if err != nil {
		return common.Hash{}, err
	}

	if directOwner != rec.Contracts.NameWrapper {
		data, err := registry.PackSetOwner(node, newOwner)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err)
		}
		return r.sendAndConfirm(ctx, interfaces.TxRequest{To: registryHandle.Address, Data: data})
	}

	// Wrapped name. Prefer the base-registrar token transfer when the
	// caller is the registrant.
	baseHandle, err := r.cfg.Contracts.Resolve(ctx, rec.TLD, interfaces.RoleBaseRegistrar)
	if err != nil {
		return common.Hash{}, err
	}
	base := contracts.NewBaseRegistrarClient(r.caller, baseHandle)
	tokenID := contracts.TokenID(label)

	registrant, err := base.OwnerOf(ctx, tokenID)
	if err == nil && registrant == r.cfg.Wallet.Address() {
		data, err := base.PackTransferFrom(registrant, newOwner, tokenID)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err)
		}
		return r.sendAndConfirm(ctx, interfaces.TxRequest{To: baseHandle.Address, Data: data})
	}

	resolverAddr, err := registry.ResolverAddr(ctx, node)
	if err != nil {
		return common.Hash{}, err
	}
	ttl, err := registry.TTL(ctx, node)
	if err != nil {
		return common.Hash{}, err
	}
	wrapperHandle, err := r.cfg.Contracts.Resolve(ctx, rec.TLD, interfaces.RoleNameWrapper)
	if err != nil {
		return common.Hash{}, err
	}
	wrapper := contracts.NewWrapperClient(r.caller, wrapperHandle)
	data, err := wrapper.PackSetRecord(node, newOwner, resolverAddr, ttl)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err)
	}
	return r.sendAndConfirm(ctx, interfaces.TxRequest{To: wrapperHandle.Address, Data: data})
}

func (r *Registrar) sendAndConfirm(ctx context.Context, req interfaces.TxRequest) (common.Hash, error) {
	txHash, err := r.cfg.Wallet.SendTransaction(ctx, req)
	if err != nil {
		return common.Hash{}, interfaces.ClassifyTxError(err)
	}
	receipt, err := r.waitReceipt(ctx, txHash)
	if err != nil {
		return txHash, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash, &interfaces.TransactionRevertedError{Class: interfaces.RevertExecution, Detail: "transaction reverted"}
	}
	return txHash, nil
}
