// Package ownership reconciles a user's owned-domain list between the
// off-chain indexer (GraphQL subgraph) and authoritative on-chain state,
// falling back to a registrar-event chain scan when the indexer is degraded
// or implausibly stale.
package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/machinebox/graphql"

	"github.com/hii-network/go-hns/interfaces"
)

const domainsByOwnerQuery = `
query GetDomainsByOwner($owner: String!) {
  domains(where: { owner: $owner }, orderBy: createdAt, orderDirection: desc) {
    id
    name
    labelName
    labelhash
    owner { id }
    resolver { id }
    ttl
    createdAt
    expiryDate
  }
}`

// IndexedDomain is one raw domain record as reported by the indexer. Fields
// may be missing or stale; the engine validates before use.
type IndexedDomain struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LabelName string `json:"labelName"`
	LabelHash string `json:"labelhash"`
	Owner     struct {
		ID string `json:"id"`
	} `json:"owner"`
	Resolver *struct {
		ID string `json:"id"`
	} `json:"resolver"`
	TTL        string `json:"ttl"`
	CreatedAt  string `json:"createdAt"`
	ExpiryDate string `json:"expiryDate"`
}

// IndexerClient queries the subgraph endpoint. Best-effort and eventually
// consistent: failures surface as ErrIndexingDegraded, never as "owns
// nothing".
type IndexerClient struct {
	client  *graphql.Client
	log     *slog.Logger
	timeout time.Duration
	retries uint64
}

// NewIndexerClient creates a client for the given GraphQL endpoint.
func NewIndexerClient(endpoint string, log *slog.Logger) *IndexerClient {
	return &IndexerClient{
		client:  graphql.NewClient(endpoint),
		log:     log,
		timeout: 15 * time.Second,
		retries: 2,
	}
}

// DomainsByOwner fetches every domain the indexer attributes to owner.
// An error return means the indexer is degraded, which is distinct from an
// empty result.
func (c *IndexerClient) DomainsByOwner(ctx context.Context, owner common.Address) ([]IndexedDomain, error) {
	req := graphql.NewRequest(domainsByOwnerQuery)
	req.Var("owner", strings.ToLower(owner.Hex()))

	var resp struct {
		Domains []IndexedDomain `json:"domains"`
	}
	operation := func() error {
		queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.client.Run(queryCtx, req, &resp)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrIndexingDegraded, err)
	}
	return resp.Domains, nil
}
