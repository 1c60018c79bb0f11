// Package interfaces defines the core types and component contracts for the
// HNS registration client. It provides the boundary between the registration
// write path, the ownership read path, and their external collaborators
// (chain RPC, wallet, indexer) without implementation details.
package interfaces
