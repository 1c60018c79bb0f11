// Package contracts resolves (TLD, role) pairs to concrete contract handles
// and provides typed clients over them. The call interfaces default to an
// embedded set shared by all TLDs; a directory-configured override directory
// may replace individual interfaces, falling back to the defaults when an
// override fails to load.
package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

// Handle is one resolved (TLD, role) pair: where to call and how.
type Handle struct {
	Role    interfaces.ContractRole
	Address common.Address
	ABI     *abi.ABI
}

// Resolver resolves contract handles against the TLD directory. Parsed
// interfaces are cached per (TLD, role) for the process lifetime.
type Resolver struct {
	directory *tldconfig.Directory
	// abiDir optionally holds per-TLD interface overrides laid out as
	// <abiDir>/<tld-without-dot>/<role>.json.
	abiDir string
	log    *slog.Logger

	mu    sync.RWMutex
	cache map[string]*abi.ABI
}

// NewResolver creates a contract interface resolver. abiDir may be empty,
// in which case only the embedded default interfaces are used.
func NewResolver(directory *tldconfig.Directory, abiDir string, log *slog.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		abiDir:    abiDir,
		log:       log,
		cache:     make(map[string]*abi.ABI),
	}
}

// Resolve returns the contract handle for a TLD and role. The TLD must be a
// configured suffix; an unconfigured TLD returns ErrTLDNotFound and is never
// silently defaulted. Registry and BaseRegistrar are global and accept any
// configured TLD.
func (r *Resolver) Resolve(ctx context.Context, tld string, role interfaces.ContractRole) (Handle, error) {
	doc := r.directory.Current(ctx)

	var addr common.Address
	switch role {
	case interfaces.RoleRegistry:
		addr = doc.Registry
	case interfaces.RoleBaseRegistrar:
		addr = doc.BaseRegistrar
	default:
		rec, err := doc.Lookup(tld)
		if err != nil {
			return Handle{}, err
		}
		switch role {
		case interfaces.RoleRegistrarController:
			addr = rec.Contracts.RegistrarController
		case interfaces.RoleNameWrapper:
			addr = rec.Contracts.NameWrapper
		case interfaces.RolePublicResolver:
			addr = rec.Contracts.PublicResolver
		default:
			return Handle{}, fmt.Errorf("%w: unknown role %q", interfaces.ErrInterfaceLoad, role)
		}
	}
	if addr == (common.Address{}) {
		return Handle{}, fmt.Errorf("%w: no %s address for %s", interfaces.ErrInterfaceLoad, role, tld)
	}

	parsed, err := r.loadABI(tld, role)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Role: role, Address: addr, ABI: parsed}, nil
}

func (r *Resolver) loadABI(tld string, role interfaces.ContractRole) (*abi.ABI, error) {
	key := tld + "|" + string(role)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	parsed, err := r.parseABI(tld, role)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = parsed
	r.mu.Unlock()
	return parsed, nil
}

func (r *Resolver) parseABI(tld string, role interfaces.ContractRole) (*abi.ABI, error) {
	if r.abiDir != "" {
		path := filepath.Join(r.abiDir, strings.TrimPrefix(tld, "."), string(role)+".json")
		if data, err := os.ReadFile(path); err == nil {
			parsed, err := abi.JSON(strings.NewReader(string(data)))
			if err == nil {
				return &parsed, nil
			}
			r.log.Warn("TLD-specific interface unparsable, falling back to default",
				"tld", tld, "role", string(role), "path", path, "err", err)
		}
	}

	src, ok := defaultABIs[role]
	if !ok {
		return nil, fmt.Errorf("%w: no default interface for role %q", interfaces.ErrInterfaceLoad, role)
	}
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing default %s interface: %v", interfaces.ErrInterfaceLoad, role, err)
	}
	return &parsed, nil
}

// Clear drops every cached interface. The next Resolve reloads.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.cache = make(map[string]*abi.ABI)
	r.mu.Unlock()
}

var defaultABIs = map[interfaces.ContractRole]string{
	interfaces.RoleRegistrarController: registrarControllerABI,
	interfaces.RoleRegistry:            registryABI,
	interfaces.RoleNameWrapper:         nameWrapperABI,
	interfaces.RolePublicResolver:      publicResolverABI,
	interfaces.RoleBaseRegistrar:       baseRegistrarABI,
}
