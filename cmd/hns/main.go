package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/hii-network/go-hns/cmd/flags"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/ownership"
	"github.com/hii-network/go-hns/registration"
	"github.com/hii-network/go-hns/wallet"
)

var privateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded private key used to sign transactions",
	EnvVars: []string{"HNS_PRIVATE_KEY"},
}

var durationYearsFlag = &cli.Int64Flag{
	Name:  "years",
	Value: 1,
	Usage: "registration period in years",
}

func main() {
	app := &cli.App{
		Name:  "hns",
		Usage: "Register and manage names on the Hii name service",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Register a name through the commit-reveal flow",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					privateKeyFlag,
					durationYearsFlag,
					&cli.StringFlag{
						Name:  "secret",
						Usage: "commitment passphrase; generated when omitted",
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "email text record to set on the new name",
					},
				},
				Action: runRegister,
			},
			{
				Name:      "renew",
				Usage:     "Extend a name's registration",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{privateKeyFlag, durationYearsFlag},
				Action:    runRenew,
			},
			{
				Name:      "transfer",
				Usage:     "Transfer a name to another address",
				ArgsUsage: "<name> <new-owner>",
				Flags:     []cli.Flag{privateKeyFlag},
				Action:    runTransfer,
			},
			{
				Name:      "list",
				Usage:     "List names owned by an address",
				ArgsUsage: "<address>",
				Flags:     []cli.Flag{flags.IndexerURLFlag},
				Action:    runList,
			},
			{
				Name:      "info",
				Usage:     "Show a name's on-chain record",
				ArgsUsage: "<name>",
				Action:    runInfo,
			},
			{
				Name:      "available",
				Usage:     "Check whether a name can be registered",
				ArgsUsage: "<name>",
				Action:    runAvailable,
			},
			{
				Name:      "price",
				Usage:     "Quote the registration price for a name",
				ArgsUsage: "<name>",
				Flags:     []cli.Flag{durationYearsFlag},
				Action:    runPrice,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	stack     *flags.Stack
	registrar *registration.Registrar
}

func setup(cCtx *cli.Context, withWallet bool) (*env, error) {
	logger := flags.SetupLogger(cCtx)
	stack, err := flags.SetupStack(cCtx.Context, cCtx, logger)
	if err != nil {
		return nil, err
	}

	cfg := registration.Config{
		Directory: stack.Directory,
		Contracts: stack.Resolver,
		Backend:   stack.Client,
		Log:       logger,
	}
	if withWallet {
		keyHex := cCtx.String(privateKeyFlag.Name)
		if keyHex == "" {
			return nil, fmt.Errorf("--%s is required", privateKeyFlag.Name)
		}
		w, err := wallet.NewLocalWallet(keyHex, stack.Client)
		if err != nil {
			return nil, err
		}
		cfg.Wallet = w
	}
	return &env{stack: stack, registrar: registration.New(cfg)}, nil
}

func splitArg(e *env, ctx context.Context, name string) (label, tld string, err error) {
	l, rec, err := e.stack.Directory.Current(ctx).SplitName(name)
	if err != nil {
		return "", "", err
	}
	return l, rec.TLD, nil
}

func yearsToDuration(years int64) time.Duration {
	return time.Duration(years) * 365 * 24 * time.Hour
}

func runRegister(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if name == "" {
		return fmt.Errorf("usage: hns register <name>")
	}
	e, err := setup(cCtx, true)
	if err != nil {
		return err
	}
	label, tld, err := splitArg(e, cCtx.Context, name)
	if err != nil {
		return err
	}

	secret := cCtx.String("secret")
	if secret == "" {
		secret = uuid.NewString()
		fmt.Printf("Commitment passphrase (keep until registration completes): %s\n", secret)
	}

	session, err := e.registrar.NewSession(cCtx.Context, label, tld, yearsToDuration(cCtx.Int64("years")), secret, cCtx.String("email"))
	if err != nil {
		return err
	}
	defer session.Dispose()

	fmt.Printf("Registering %s (session %s)\n", session.Name(), session.ID())
	if err := e.registrar.Run(cCtx.Context, session); err != nil {
		return err
	}

	view := session.Snapshot()
	fmt.Printf("Registered %s\n  commit tx: %s\n  reveal tx: %s\n",
		session.Name(), view.CommitTx.Hex(), view.RevealTx.Hex())
	return nil
}

func runRenew(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if name == "" {
		return fmt.Errorf("usage: hns renew <name>")
	}
	e, err := setup(cCtx, true)
	if err != nil {
		return err
	}
	label, tld, err := splitArg(e, cCtx.Context, name)
	if err != nil {
		return err
	}
	txHash, err := e.registrar.Renew(cCtx.Context, label, tld, yearsToDuration(cCtx.Int64("years")))
	if err != nil {
		return err
	}
	fmt.Printf("Renewed %s\n  tx: %s\n", name, txHash.Hex())
	return nil
}

func runTransfer(cCtx *cli.Context) error {
	name := cCtx.Args().Get(0)
	newOwnerArg := cCtx.Args().Get(1)
	if name == "" || !common.IsHexAddress(newOwnerArg) {
		return fmt.Errorf("usage: hns transfer <name> <new-owner-address>")
	}
	e, err := setup(cCtx, true)
	if err != nil {
		return err
	}
	txHash, err := e.registrar.Transfer(cCtx.Context, name, common.HexToAddress(newOwnerArg))
	if err != nil {
		return err
	}
	fmt.Printf("Transferred %s to %s\n  tx: %s\n", name, newOwnerArg, txHash.Hex())
	return nil
}

func runList(cCtx *cli.Context) error {
	addrArg := cCtx.Args().First()
	if !common.IsHexAddress(addrArg) {
		return fmt.Errorf("usage: hns list <address>")
	}
	e, err := setup(cCtx, false)
	if err != nil {
		return err
	}
	logger := flags.SetupLogger(cCtx)

	var indexer *ownership.IndexerClient
	if url := cCtx.String(flags.IndexerURLFlag.Name); url != "" {
		indexer = ownership.NewIndexerClient(url, logger)
	}
	engine := ownership.NewEngine(ownership.EngineConfig{
		Indexer:   indexer,
		Scanner:   ownership.NewScanner(e.stack.Caller, e.stack.Resolver, e.stack.Directory, logger),
		Caller:    e.stack.Caller,
		Resolver:  e.stack.Resolver,
		Directory: e.stack.Directory,
		Log:       logger,
	})

	records, err := engine.DomainsOwnedBy(cCtx.Context, common.HexToAddress(addrArg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if len(records) == 0 {
		fmt.Println("No domains found")
		return nil
	}
	for _, rec := range records {
		line := rec.Name
		if rec.Wrapped {
			line += " (wrapped)"
		}
		if !rec.Expiry.IsZero() {
			line += fmt.Sprintf(" expires %s", rec.Expiry.Format("2006-01-02"))
		}
		fmt.Println(line)
	}
	return nil
}

func runInfo(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if name == "" {
		return fmt.Errorf("usage: hns info <name>")
	}
	e, err := setup(cCtx, false)
	if err != nil {
		return err
	}
	logger := flags.SetupLogger(cCtx)
	engine := ownership.NewEngine(ownership.EngineConfig{
		Caller:    e.stack.Caller,
		Resolver:  e.stack.Resolver,
		Directory: e.stack.Directory,
		Log:       logger,
	})

	rec, err := engine.DomainInfo(cCtx.Context, name)
	if err != nil {
		return err
	}
	fmt.Printf("Name:      %s\nNode:      %s\nOwner:     %s\n", rec.Name, rec.Node.Hex(), rec.EffectiveOwner.Hex())
	if rec.Wrapped {
		fmt.Printf("Wrapped:   yes (registry owner %s)\n", rec.DirectOwner.Hex())
	}
	if rec.Resolver != (common.Address{}) {
		fmt.Printf("Resolver:  %s\n", rec.Resolver.Hex())
	}
	if rec.ForwardAddr != (common.Address{}) {
		fmt.Printf("Points to: %s\n", rec.ForwardAddr.Hex())
	}
	if rec.Email != "" {
		fmt.Printf("Email:     %s\n", rec.Email)
	}
	if !rec.Expiry.IsZero() {
		fmt.Printf("Expires:   %s\n", rec.Expiry.Format(time.RFC3339))
	}
	return nil
}

func runAvailable(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if name == "" {
		return fmt.Errorf("usage: hns available <name>")
	}
	e, err := setup(cCtx, false)
	if err != nil {
		return err
	}
	label, tld, err := splitArg(e, cCtx.Context, name)
	if err != nil {
		return err
	}
	available, err := e.registrar.Available(cCtx.Context, label, tld)
	if err != nil {
		return err
	}
	if available {
		fmt.Printf("%s is available\n", name)
	} else {
		fmt.Printf("%s is taken\n", name)
	}
	return nil
}

func runPrice(cCtx *cli.Context) error {
	name := cCtx.Args().First()
	if name == "" {
		return fmt.Errorf("usage: hns price <name>")
	}
	e, err := setup(cCtx, false)
	if err != nil {
		return err
	}
	label, rec, err := e.stack.Directory.Current(cCtx.Context).SplitName(name)
	if err != nil {
		return err
	}
	years := cCtx.Int64("years")
	price, err := e.registrar.Quote(cCtx.Context, label, rec.TLD, yearsToDuration(years))
	if err != nil {
		return err
	}
	fmt.Printf("%s for %d year(s): %s HII (%s wei)\n", name, years, interfaces.FormatNative(rec.NormalizePrice(price)), price.String())
	return nil
}
