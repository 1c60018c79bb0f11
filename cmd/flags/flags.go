// Package flags holds the CLI flags and wiring helpers shared by the hns
// binaries.
package flags

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/hii-network/go-hns/common"
	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/tldconfig"
)

var RpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Value: "http://127.0.0.1:8545",
	Usage: "address to connect to RPC",
}

var TLDConfigURLFlag = &cli.StringFlag{
	Name:  "tld-config-url",
	Usage: "URL of the TLD directory document",
}

var TLDConfigFileFlag = &cli.StringFlag{
	Name:  "tld-config-file",
	Usage: "local TLD directory document, used as a fallback when the URL fails",
}

var ABIDirFlag = &cli.StringFlag{
	Name:  "abi-dir",
	Usage: "directory with per-TLD ABI overrides",
}

var IndexerURLFlag = &cli.StringFlag{
	Name:  "indexer-url",
	Usage: "GraphQL endpoint of the domain indexer",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var CommonFlags = []cli.Flag{
	RpcAddrFlag,
	TLDConfigURLFlag,
	TLDConfigFileFlag,
	ABIDirFlag,
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// Stack is the common wiring every binary needs: a node client, the TLD
// directory, and the contract interface resolver over it.
type Stack struct {
	Client    *ethclient.Client
	Directory *tldconfig.Directory
	Resolver  *contracts.Resolver
	Caller    *contracts.Caller
}

// SetupStack dials the RPC endpoint and loads the TLD directory from the
// configured sources.
func SetupStack(ctx context.Context, cCtx *cli.Context, logger *slog.Logger) (*Stack, error) {
	rpcAddress := cCtx.String(RpcAddrFlag.Name)
	logger.Info("Connecting to RPC", "address", rpcAddress)
	client, err := ethclient.Dial(rpcAddress)
	if err != nil {
		return nil, fmt.Errorf("dialing RPC: %w", err)
	}

	var source, fallback tldconfig.Source
	if url := cCtx.String(TLDConfigURLFlag.Name); url != "" {
		source = tldconfig.RemoteSource{URL: url}
	}
	if file := cCtx.String(TLDConfigFileFlag.Name); file != "" {
		fallback = tldconfig.FileSource{Path: file}
	}
	if source == nil {
		source, fallback = fallback, nil
	}
	if source == nil {
		return nil, fmt.Errorf("either %s or %s is required", TLDConfigURLFlag.Name, TLDConfigFileFlag.Name)
	}

	directory, err := tldconfig.NewDirectory(ctx, source, fallback, tldconfig.DefaultTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("loading TLD directory: %w", err)
	}

	resolver := contracts.NewResolver(directory, cCtx.String(ABIDirFlag.Name), logger)
	return &Stack{
		Client:    client,
		Directory: directory,
		Resolver:  resolver,
		Caller:    contracts.NewCaller(client),
	}, nil
}
