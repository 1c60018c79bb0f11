package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameHash computes the ENS namehash of a fully qualified name
// (e.g. "myname.hii"). The empty name hashes to the zero node.
func NameHash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash.Bytes())
	}
	return node
}

// LabelHash computes keccak256 of a bare label.
func LabelHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// TokenID converts a label hash to the uint256 token id used by the base
// registrar's ERC-721 interface.
func TokenID(label string) *big.Int {
	return new(big.Int).SetBytes(LabelHash(label).Bytes())
}

// SecretHash derives the bytes32 commitment secret from a user-supplied
// passphrase. Domain-agnostic: the same passphrase yields the same hash for
// every name.
func SecretHash(secret string) common.Hash {
	return crypto.Keccak256Hash([]byte(secret))
}
