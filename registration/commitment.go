// Package registration implements the write path of the naming client: the
// commitment builder, the payment/gas guard, and the commit-reveal
// registration state machine, plus renewals.
package registration

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/tldconfig"
)

// CommitmentInput is everything a registration commitment derives from.
type CommitmentInput struct {
	Label    string
	TLD      tldconfig.TLDRecord
	Owner    common.Address
	Duration *big.Int // seconds
	Secret   string
	Email    string // optional text record; TLD default when empty
}

// BuildRegisterCall derives the full register argument tuple from the input:
// the namehash node, the resolver multicall payloads (address record plus an
// optional email text record), and the hashed secret. Pure and
// side-effect-free; the resolver client is used only for ABI encoding.
func BuildRegisterCall(resolver *contracts.ResolverClient, in CommitmentInput) (contracts.RegisterCall, error) {
	if in.Label == "" {
		return contracts.RegisterCall{}, fmt.Errorf("empty label")
	}
	node := contracts.NameHash(in.Label + in.TLD.TLD)

	setAddr, err := resolver.EncodeSetAddr(node, in.Owner)
	if err != nil {
		return contracts.RegisterCall{}, fmt.Errorf("encoding address record for %s%s: %w", in.Label, in.TLD.TLD, err)
	}
	data := [][]byte{setAddr}

	email := in.Email
	if email == "" {
		email = in.TLD.DefaultEmail
	}
	if email != "" {
		setText, err := resolver.EncodeSetText(node, "email", email)
		if err != nil {
			return contracts.RegisterCall{}, fmt.Errorf("encoding email record for %s%s: %w", in.Label, in.TLD.TLD, err)
		}
		data = append(data, setText)
	}

	return contracts.RegisterCall{
		Label:         in.Label,
		Owner:         in.Owner,
		Duration:      in.Duration,
		SecretHash:    contracts.SecretHash(in.Secret),
		Resolver:      resolver.Handle.Address,
		Data:          data,
		ReverseRecord: true,
		Fuses:         0,
	}, nil
}

// BuildCommitment derives the register call tuple and its on-chain
// fingerprint. The fingerprint derivation is a read-only chain call and is
// idempotent: identical inputs return the identical fingerprint.
func BuildCommitment(ctx context.Context, registrar *contracts.RegistrarClient, resolver *contracts.ResolverClient, in CommitmentInput) (contracts.RegisterCall, common.Hash, error) {
	call, err := BuildRegisterCall(resolver, in)
	if err != nil {
		return contracts.RegisterCall{}, common.Hash{}, err
	}
	fingerprint, err := registrar.MakeCommitment(ctx, call)
	if err != nil {
		return contracts.RegisterCall{}, common.Hash{}, err
	}
	return call, fingerprint, nil
}
