package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

// DefaultCacheTTL is how long a reconciled ownership result stays fresh.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	records   []interfaces.DomainRecord
	fetchedAt time.Time
}

// Engine reconciles domain ownership for an address from the indexer and,
// when the indexer is degraded or suspiciously sparse, from the chain itself.
type Engine struct {
	indexer   *IndexerClient
	scanner   *Scanner
	caller    *contracts.Caller
	resolver  *contracts.Resolver
	directory *tldconfig.Directory
	log       *slog.Logger

	// ExpectedMin is the number of domains below which an indexer answer is
	// treated as possibly stale and cross-checked against the chain. Zero
	// disables the heuristic.
	ExpectedMin int

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[common.Address]cacheEntry
}

// EngineConfig wires an Engine's collaborators.
type EngineConfig struct {
	Indexer   *IndexerClient
	Scanner   *Scanner
	Caller    *contracts.Caller
	Resolver  *contracts.Resolver
	Directory *tldconfig.Directory
	Log       *slog.Logger
	CacheTTL  time.Duration
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Engine{
		indexer:   cfg.Indexer,
		scanner:   cfg.Scanner,
		caller:    cfg.Caller,
		resolver:  cfg.Resolver,
		directory: cfg.Directory,
		log:       cfg.Log,
		cacheTTL:  cfg.CacheTTL,
		cache:     make(map[common.Address]cacheEntry),
	}
}

// DomainsOwnedBy returns every domain the address controls, sorted by name.
//
// The indexer is the primary source. Its answer is cross-checked against the
// chain when the query fails, or when it returns fewer domains than
// ExpectedMin. When both sources fail the partial result is returned together
// with an error wrapping ErrIndexingDegraded, so callers can distinguish "no
// domains" from "could not tell".
func (e *Engine) DomainsOwnedBy(ctx context.Context, owner common.Address) ([]interfaces.DomainRecord, error) {
	if cached, ok := e.cached(owner); ok {
		return cached, nil
	}

	records, indexerErr := e.fromIndexer(ctx, owner)
	if indexerErr != nil {
		e.log.Warn("Indexer query failed, falling back to chain scan",
			"owner", owner.Hex(), "err", indexerErr)
	} else if e.ExpectedMin > 0 && len(records) < e.ExpectedMin {
		e.log.Info("Indexer returned fewer domains than expected, cross-checking chain",
			"owner", owner.Hex(), "indexed", len(records), "expectedMin", e.ExpectedMin)
		indexerErr = fmt.Errorf("%w: indexer returned %d domains, expected at least %d",
			interfaces.ErrIndexingDegraded, len(records), e.ExpectedMin)
	}

	if indexerErr != nil && e.scanner != nil {
		scanned, scanErr := e.scanner.Scan(ctx, owner)
		if scanErr != nil {
			e.log.Warn("Chain scan failed", "owner", owner.Hex(), "err", scanErr)
			return sortRecords(records), fmt.Errorf("ownership result may be incomplete: %w", indexerErr)
		}
		records = mergeRecords(records, scanned)
		indexerErr = nil
	}
	if indexerErr != nil {
		return sortRecords(records), fmt.Errorf("ownership result may be incomplete: %w", indexerErr)
	}

	records = sortRecords(records)
	e.store(owner, records)
	return records, nil
}

// Invalidate drops the cached result for one address, forcing the next query
// to hit the sources again. Used after a registration or transfer confirms.
func (e *Engine) Invalidate(owner common.Address) {
	e.mu.Lock()
	delete(e.cache, owner)
	e.mu.Unlock()
}

// Clear drops every cached result.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.cache = make(map[common.Address]cacheEntry)
	e.mu.Unlock()
}

func (e *Engine) cached(owner common.Address) ([]interfaces.DomainRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[owner]
	if !ok || time.Since(entry.fetchedAt) > e.cacheTTL {
		return nil, false
	}
	return entry.records, true
}

func (e *Engine) store(owner common.Address, records []interfaces.DomainRecord) {
	e.mu.Lock()
	e.cache[owner] = cacheEntry{records: records, fetchedAt: time.Now()}
	e.mu.Unlock()
}

// fromIndexer queries the subgraph and classifies each returned domain. A
// domain whose registrant is the queried address is kept as-is; one whose
// registrant is a configured name wrapper is kept only when the wrapper's
// token owner is the queried address, with the effective owner rewritten.
// Structurally incomplete rows (no label, unknown suffix) are discarded.
func (e *Engine) fromIndexer(ctx context.Context, owner common.Address) ([]interfaces.DomainRecord, error) {
	if e.indexer == nil {
		return nil, fmt.Errorf("%w: no indexer configured", interfaces.ErrIndexingDegraded)
	}
	indexed, err := e.indexer.DomainsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	doc := e.directory.Current(ctx)
	var out []interfaces.DomainRecord
	for _, d := range indexed {
		rec, ok := e.classify(ctx, doc, owner, d)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Engine) classify(ctx context.Context, doc *tldconfig.Document, owner common.Address, d IndexedDomain) (interfaces.DomainRecord, bool) {
	if d.LabelName == "" || d.Name == "" {
		return interfaces.DomainRecord{}, false
	}
	tld, ok := matchTLD(doc, d.Name)
	if !ok {
		e.log.Debug("Discarding indexed domain with unknown suffix", "name", d.Name)
		return interfaces.DomainRecord{}, false
	}

	registrant := common.HexToAddress(d.Owner.ID)
	rec := interfaces.DomainRecord{
		Node:           contracts.NameHash(d.Name),
		Name:           d.Name,
		Label:          d.LabelName,
		DirectOwner:    registrant,
		EffectiveOwner: registrant,
		Source:         interfaces.SourceIndexer,
	}
	if d.Resolver != nil {
		// Subgraph resolver ids are "<resolverAddr>-<node>".
		if addr, _, found := strings.Cut(d.Resolver.ID, "-"); found && common.IsHexAddress(addr) {
			rec.Resolver = common.HexToAddress(addr)
		}
	}
	if d.ExpiryDate != "" {
		if secs, ok := new(big.Int).SetString(d.ExpiryDate, 10); ok {
			rec.Expiry = time.Unix(secs.Int64(), 0).UTC()
		}
	}

	switch {
	case registrant == owner:
		return rec, true
	case registrant == tld.Contracts.NameWrapper:
		handle, err := e.resolver.Resolve(ctx, tld.TLD, interfaces.RoleNameWrapper)
		if err != nil {
			e.log.Debug("Discarding wrapped domain, wrapper unresolvable",
				"name", d.Name, "err", err)
			return interfaces.DomainRecord{}, false
		}
		tokenOwner, err := contracts.NewWrapperClient(e.caller, handle).OwnerOf(ctx, rec.Node)
		if err != nil || tokenOwner != owner {
			return interfaces.DomainRecord{}, false
		}
		rec.EffectiveOwner = tokenOwner
		rec.Wrapped = true
		return rec, true
	default:
		// Indexer may return rows for past owners; the chain is authoritative.
		return interfaces.DomainRecord{}, false
	}
}

// DomainInfo resolves one name's full on-chain record: registry owner,
// wrapper status, resolver, forward address record, and expiry.
func (e *Engine) DomainInfo(ctx context.Context, name string) (interfaces.DomainRecord, error) {
	label, tld, err := e.directory.Current(ctx).SplitName(name)
	if err != nil {
		return interfaces.DomainRecord{}, err
	}
	node := contracts.NameHash(name)

	registryHandle, err := e.resolver.Resolve(ctx, tld.TLD, interfaces.RoleRegistry)
	if err != nil {
		return interfaces.DomainRecord{}, err
	}
	registry := contracts.NewRegistryClient(e.caller, registryHandle)

	directOwner, err := registry.Owner(ctx, node)
	if err != nil {
		return interfaces.DomainRecord{}, err
	}
	rec := interfaces.DomainRecord{
		Node:           node,
		Name:           name,
		Label:          label,
		DirectOwner:    directOwner,
		EffectiveOwner: directOwner,
		Source:         interfaces.SourceChainScan,
	}

	if directOwner == tld.Contracts.NameWrapper {
		wrapperHandle, err := e.resolver.Resolve(ctx, tld.TLD, interfaces.RoleNameWrapper)
		if err == nil {
			if tokenOwner, err := contracts.NewWrapperClient(e.caller, wrapperHandle).OwnerOf(ctx, node); err == nil {
				rec.EffectiveOwner = tokenOwner
				rec.Wrapped = true
			}
		}
	}

	if resolverAddr, err := registry.ResolverAddr(ctx, node); err == nil && resolverAddr != (common.Address{}) {
		rec.Resolver = resolverAddr
		// Names may point at a non-default resolver, so call the one the
		// registry names with the standard resolver interface.
		if resolverHandle, err := e.resolver.Resolve(ctx, tld.TLD, interfaces.RolePublicResolver); err == nil {
			resolverHandle.Address = resolverAddr
			client := contracts.NewResolverClient(e.caller, resolverHandle)
			if addr, err := client.Addr(ctx, node); err == nil {
				rec.ForwardAddr = addr
			}
			if email, err := client.Text(ctx, node, "email"); err == nil {
				rec.Email = email
			}
		}
	}

	baseHandle, err := e.resolver.Resolve(ctx, tld.TLD, interfaces.RoleBaseRegistrar)
	if err == nil {
		base := contracts.NewBaseRegistrarClient(e.caller, baseHandle)
		if expires, err := base.NameExpires(ctx, contracts.TokenID(label)); err == nil && expires.Sign() > 0 {
			rec.Expiry = time.Unix(expires.Int64(), 0).UTC()
		}
	}
	return rec, nil
}

func matchTLD(doc *tldconfig.Document, name string) (tldconfig.TLDRecord, bool) {
	for _, rec := range doc.TLDs {
		if strings.HasSuffix(name, rec.TLD) && len(name) > len(rec.TLD) {
			return rec, true
		}
	}
	return tldconfig.TLDRecord{}, false
}

// mergeRecords combines indexer and scan results, deduplicating by node.
// First source wins so indexer metadata is preferred when both saw a name.
func mergeRecords(primary, secondary []interfaces.DomainRecord) []interfaces.DomainRecord {
	seen := make(map[common.Hash]struct{}, len(primary))
	out := make([]interfaces.DomainRecord, 0, len(primary)+len(secondary))
	for _, r := range primary {
		if _, ok := seen[r.Node]; ok {
			continue
		}
		seen[r.Node] = struct{}{}
		out = append(out, r)
	}
	for _, r := range secondary {
		if _, ok := seen[r.Node]; ok {
			continue
		}
		seen[r.Node] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortRecords(records []interfaces.DomainRecord) []interfaces.DomainRecord {
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}
