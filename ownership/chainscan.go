package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

// DefaultScanLookback bounds how far back the chain scan reads registration
// events.
const DefaultScanLookback = 10_000

// Scanner recovers owned domains directly from registrar logs, bypassing the
// indexer.
type Scanner struct {
	caller    *contracts.Caller
	resolver  *contracts.Resolver
	directory *tldconfig.Directory
	log       *slog.Logger
	lookback  uint64
}

// NewScanner creates a chain scanner over the contract resolver's backend.
func NewScanner(caller *contracts.Caller, resolver *contracts.Resolver, directory *tldconfig.Directory, log *slog.Logger) *Scanner {
	return &Scanner{
		caller:    caller,
		resolver:  resolver,
		directory: directory,
		log:       log,
		lookback:  DefaultScanLookback,
	}
}

// Scan reads recent NameRegistered events from every configured TLD's
// registrar controller, re-derives each name's node, and keeps the names the
// queried address currently owns on chain (directly or through the TLD's
// name wrapper). A failing TLD is logged and skipped; Scan fails only when
// the head block cannot be read.
func (s *Scanner) Scan(ctx context.Context, owner common.Address) ([]interfaces.DomainRecord, error) {
	head, err := s.caller.Backend().BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading head block: %v", interfaces.ErrChainRead, err)
	}
	fromBlock := uint64(0)
	if head > s.lookback {
		fromBlock = head - s.lookback
	}

	doc := s.directory.Current(ctx)
	var out []interfaces.DomainRecord
	for _, rec := range doc.TLDs {
		records, err := s.scanTLD(ctx, rec, owner, fromBlock, head)
		if err != nil {
			s.log.Warn("Chain scan failed for TLD", "tld", rec.TLD, "err", err)
			continue
		}
		out = append(out, records...)
	}
	return out, nil
}

func (s *Scanner) scanTLD(ctx context.Context, rec tldconfig.TLDRecord, owner common.Address, fromBlock, toBlock uint64) ([]interfaces.DomainRecord, error) {
	controller, err := s.resolver.Resolve(ctx, rec.TLD, interfaces.RoleRegistrarController)
	if err != nil {
		return nil, err
	}
	registryHandle, err := s.resolver.Resolve(ctx, rec.TLD, interfaces.RoleRegistry)
	if err != nil {
		return nil, err
	}
	wrapperHandle, err := s.resolver.Resolve(ctx, rec.TLD, interfaces.RoleNameWrapper)
	if err != nil {
		return nil, err
	}
	registry := contracts.NewRegistryClient(s.caller, registryHandle)
	wrapper := contracts.NewWrapperClient(s.caller, wrapperHandle)

	topic := controller.EventTopic("NameRegistered")
	logs, err := s.caller.Backend().FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{controller.Address},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: filtering registrar logs: %v", interfaces.ErrChainRead, err)
	}

	var out []interfaces.DomainRecord
	for _, lg := range logs {
		decoded := map[string]interface{}{}
		if err := controller.ABI.UnpackIntoMap(decoded, "NameRegistered", lg.Data); err != nil {
			s.log.Debug("Skipping undecodable registration event",
				"tld", rec.TLD, "block", lg.BlockNumber, "err", err)
			continue
		}
		label, _ := decoded["name"].(string)
		if label == "" {
			continue
		}
		fullName := label + rec.TLD
		node := contracts.NameHash(fullName)

		directOwner, err := registry.Owner(ctx, node)
		if err != nil {
			s.log.Debug("Skipping name with unreadable owner", "name", fullName, "err", err)
			continue
		}

		record := interfaces.DomainRecord{
			Node:           node,
			Name:           fullName,
			Label:          label,
			DirectOwner:    directOwner,
			EffectiveOwner: directOwner,
			Source:         interfaces.SourceChainScan,
		}
		if expires, ok := decoded["expires"].(*big.Int); ok {
			record.Expiry = time.Unix(expires.Int64(), 0).UTC()
		}

		switch {
		case directOwner == owner:
		case directOwner == rec.Contracts.NameWrapper:
			tokenOwner, err := wrapper.OwnerOf(ctx, node)
			if err != nil || tokenOwner != owner {
				continue
			}
			record.EffectiveOwner = tokenOwner
			record.Wrapped = true
		default:
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
