package interfaces

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ContractRole is a logical contract role resolved per TLD (or globally for
// the shared registry and base registrar).
type ContractRole string

const (
	RoleRegistrarController ContractRole = "RegistrarController"
	RoleNameWrapper         ContractRole = "NameWrapper"
	RolePublicResolver      ContractRole = "PublicResolver"
	RoleBaseRegistrar       ContractRole = "BaseRegistrar"
	RoleRegistry            ContractRole = "Registry"
)

// PriceQuote is the registrar's rent price split, in wei.
type PriceQuote struct {
	Base    *big.Int
	Premium *big.Int
}

// Total returns base + premium.
func (q PriceQuote) Total() *big.Int {
	return new(big.Int).Add(q.Base, q.Premium)
}

// Phase is the lifecycle state of a registration session.
type Phase string

const (
	PhaseForm          Phase = "form"
	PhaseCommitting    Phase = "committing"
	PhaseWaiting       Phase = "waiting"
	PhaseReadyToReveal Phase = "ready"
	PhaseRevealing     Phase = "revealing"
	PhaseSucceeded     Phase = "succeeded"
	PhaseFailed        Phase = "failed"
)

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// SessionView is the read-only snapshot of a registration session exposed to
// callers. All fields are copies; mutating a view has no effect on the
// session.
type SessionView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Phase       Phase       `json:"phase"`
	Fingerprint common.Hash `json:"fingerprint,omitempty"`
	CommitTx    common.Hash `json:"commitTx,omitempty"`
	RevealTx    common.Hash `json:"revealTx,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// RecordSource identifies which collaborator discovered a domain record.
type RecordSource string

const (
	SourceIndexer   RecordSource = "indexer"
	SourceChainScan RecordSource = "chainscan"
)

// DomainRecord is one reconciled owned-domain entry. EffectiveOwner equals
// DirectOwner unless the name is held by a name-wrapper, in which case it is
// the wrapper's reported token owner.
type DomainRecord struct {
	Node           common.Hash    `json:"node"`
	Name           string         `json:"name"`
	Label          string         `json:"label"`
	DirectOwner    common.Address `json:"directOwner"`
	EffectiveOwner common.Address `json:"effectiveOwner"`
	Wrapped        bool           `json:"wrapped"`
	Resolver       common.Address `json:"resolver,omitempty"`
	ForwardAddr    common.Address `json:"forwardAddr,omitempty"`
	Email          string         `json:"email,omitempty"`
	Expiry         time.Time      `json:"expiry,omitempty"`
	Source         RecordSource   `json:"source"`
}

// NormalizeLabel lowercases a label and strips every character outside
// [a-z0-9-], including a trailing TLD suffix if one was pasted in.
func NormalizeLabel(label string, tlds []string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, tld := range tlds {
		label = strings.TrimSuffix(label, tld)
	}
	var b strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
