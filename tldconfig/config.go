// Package tldconfig loads and serves the TLD directory: the mapping from a
// TLD suffix to the registrar-controller, name-wrapper, and public-resolver
// contracts backing it, plus the registry and base registrar shared by all
// TLDs. The directory document comes from a local JSON file or a remote HTTP
// endpoint and is cached with a bounded TTL.
package tldconfig

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/interfaces"
)

// TLDRecord describes one configured TLD. Immutable once loaded.
type TLDRecord struct {
	TLD          string           `json:"tld"`
	Name         string           `json:"name"`
	IsPrimary    bool             `json:"isPrimary"`
	Contracts    ContractSet      `json:"contracts"`
	DefaultEmail string           `json:"defaultEmail"`
	// PriceScaleDiv divides rent-price quotes for this TLD. It exists because
	// a misconfigured per-TLD price oracle can report in the wrong unit; the
	// correction is an explicit TLD-scoped policy, never inferred. Zero or
	// absent means 1.
	PriceScaleDiv int64 `json:"priceScaleDiv,omitempty"`
}

// ContractSet holds the per-TLD contract addresses.
type ContractSet struct {
	RegistrarController common.Address `json:"registrarController"`
	NameWrapper         common.Address `json:"nameWrapper"`
	PublicResolver      common.Address `json:"publicResolver"`
}

// NormalizePrice applies the TLD's price scale policy to a raw quote.
func (r TLDRecord) NormalizePrice(raw *big.Int) *big.Int {
	if r.PriceScaleDiv <= 1 || raw == nil {
		return raw
	}
	return new(big.Int).Div(raw, big.NewInt(r.PriceScaleDiv))
}

// Document is the full TLD directory document.
type Document struct {
	TLDs          []TLDRecord    `json:"tlds"`
	Registry      common.Address `json:"registry"`
	BaseRegistrar common.Address `json:"baseRegistrar"`
	Metadata      Metadata       `json:"metadata"`
}

// Metadata describes the directory document's provenance.
type Metadata struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Description string `json:"description,omitempty"`
}

// ParseDocument decodes and validates a directory document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tldconfig: invalid document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural invariants of a directory document.
func (d *Document) Validate() error {
	if len(d.TLDs) == 0 {
		return fmt.Errorf("tldconfig: document lists no TLDs")
	}
	seen := make(map[string]bool, len(d.TLDs))
	for _, rec := range d.TLDs {
		if !strings.HasPrefix(rec.TLD, ".") {
			return fmt.Errorf("tldconfig: tld %q must start with a dot", rec.TLD)
		}
		if seen[rec.TLD] {
			return fmt.Errorf("tldconfig: duplicate tld %q", rec.TLD)
		}
		seen[rec.TLD] = true
		if rec.Contracts.RegistrarController == (common.Address{}) {
			return fmt.Errorf("tldconfig: tld %q has no registrar controller", rec.TLD)
		}
	}
	return nil
}

// Lookup returns the record for a TLD suffix, or ErrTLDNotFound.
func (d *Document) Lookup(tld string) (TLDRecord, error) {
	for _, rec := range d.TLDs {
		if rec.TLD == tld {
			return rec, nil
		}
	}
	return TLDRecord{}, fmt.Errorf("%w: %s", interfaces.ErrTLDNotFound, tld)
}

// Primary returns the primary TLD record, or the first one when none is
// flagged primary.
func (d *Document) Primary() TLDRecord {
	for _, rec := range d.TLDs {
		if rec.IsPrimary {
			return rec
		}
	}
	return d.TLDs[0]
}

// Suffixes returns the configured TLD suffixes in document order.
func (d *Document) Suffixes() []string {
	out := make([]string, len(d.TLDs))
	for i, rec := range d.TLDs {
		out[i] = rec.TLD
	}
	return out
}

// SplitName splits a full domain name into (label, record). The TLD suffix
// must match a configured TLD.
func (d *Document) SplitName(fullName string) (string, TLDRecord, error) {
	for _, rec := range d.TLDs {
		if strings.HasSuffix(fullName, rec.TLD) {
			return strings.TrimSuffix(fullName, rec.TLD), rec, nil
		}
	}
	return "", TLDRecord{}, fmt.Errorf("%w: no configured suffix matches %q", interfaces.ErrTLDNotFound, fullName)
}
