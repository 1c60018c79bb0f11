package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

const (
	// CommitGasLimit is the fixed gas limit for the commit transaction; it
	// carries a single bytes32 store.
	CommitGasLimit = 50_000

	// MinLabelLength mirrors the registrar contract's shortest registrable
	// label. Checked before any chain write.
	MinLabelLength = 3

	defaultCommitBuffer   = 5 * time.Second
	defaultFallbackWait   = 60 * time.Second
	defaultFallbackMaxAge = 24 * time.Hour
	defaultPollInterval   = 2 * time.Second
	defaultReceiptTimeout = 3 * time.Minute
)

// ErrSessionDisposed is returned when the session was torn down while a
// local timer was pending. Already-broadcast transactions are unaffected.
var ErrSessionDisposed = errors.New("session disposed")

// Config wires a Registrar.
type Config struct {
	Directory *tldconfig.Directory
	Contracts *contracts.Resolver
	Backend   interfaces.ChainBackend
	Wallet    interfaces.Wallet
	Log       *slog.Logger

	// CommitBuffer is added to the registrar's minCommitmentAge to absorb
	// clock skew between client and chain. Defaults to 5 seconds.
	CommitBuffer time.Duration
	// FallbackWait seeds the countdown when the registrar's timing
	// parameters are unreadable. Defaults to 60 seconds.
	FallbackWait time.Duration
	// FallbackMaxAge bounds the validity window when maxCommitmentAge is
	// unreadable. Defaults to 24 hours.
	FallbackMaxAge time.Duration
	ReceiptTimeout time.Duration
	PollInterval   time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// Registrar orchestrates commit-reveal registrations and renewals.
type Registrar struct {
	cfg    Config
	caller *contracts.Caller
	guard  *Guard
}

// New creates a Registrar, filling config defaults.
func New(cfg Config) *Registrar {
	if cfg.CommitBuffer == 0 {
		cfg.CommitBuffer = defaultCommitBuffer
	}
	if cfg.FallbackWait == 0 {
		cfg.FallbackWait = defaultFallbackWait
	}
	if cfg.FallbackMaxAge == 0 {
		cfg.FallbackMaxAge = defaultFallbackMaxAge
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = defaultReceiptTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registrar{
		cfg:    cfg,
		caller: contracts.NewCaller(cfg.Backend),
		guard:  NewGuard(cfg.Backend, cfg.Log),
	}
}

// Directory exposes the TLD directory the registrar was configured with.
func (r *Registrar) Directory() *tldconfig.Directory {
	return r.cfg.Directory
}

// NewSession starts a registration session for label under tld. The label is
// normalized first (lowercased, pasted suffixes and invalid characters
// stripped) and must meet the registrar's minimum length. The secret belongs
// to this session alone and is never reused implicitly. An empty email falls
// back to the TLD's default text record.
func (r *Registrar) NewSession(ctx context.Context, label, tld string, duration time.Duration, secret, email string) (*Session, error) {
	if r.cfg.Wallet == nil {
		return nil, fmt.Errorf("no wallet connected")
	}
	if secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	doc := r.cfg.Directory.Current(ctx)
	rec, err := doc.Lookup(tld)
	if err != nil {
		return nil, err
	}
	label = interfaces.NormalizeLabel(label, doc.Suffixes())
	if len(label) < MinLabelLength {
		return nil, fmt.Errorf("%w: %q needs at least %d characters", interfaces.ErrLabelTooShort, label, MinLabelLength)
	}
	return newSession(label, rec, r.cfg.Wallet.Address(), int64(duration.Seconds()), secret, email), nil
}

// Run drives a session through the whole machine: commit, wait, reveal.
func (r *Registrar) Run(ctx context.Context, s *Session) error {
	if err := r.Commit(ctx, s); err != nil {
		return err
	}
	return r.Reveal(ctx, s)
}

// Commit derives the commitment fingerprint, submits the commit transaction,
// and waits out the registrar's minimum commitment age plus the safety
// buffer. On return the session is ready to reveal.
func (r *Registrar) Commit(ctx context.Context, s *Session) error {
	if p := s.Phase(); p != interfaces.PhaseForm {
		return fmt.Errorf("cannot commit from phase %q", p)
	}
	s.setPhase(interfaces.PhaseCommitting)

	registrar, resolver, err := r.writeClients(ctx, s.tld.TLD)
	if err != nil {
		return s.fail(err)
	}

	call, fingerprint, err := BuildCommitment(ctx, registrar, resolver, CommitmentInput{
		Label:    s.label,
		TLD:      s.tld,
		Owner:    s.owner,
		Duration: big.NewInt(s.duration),
		Secret:   s.secret,
		Email:    s.email,
	})
	if err != nil {
		return s.fail(err)
	}
	s.mu.Lock()
	s.call = call
	s.fingerprint = fingerprint
	s.mu.Unlock()

	data, err := registrar.PackCommit(fingerprint)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err))
	}
	txHash, err := r.cfg.Wallet.SendTransaction(ctx, interfaces.TxRequest{
		To:       registrar.Handle.Address,
		Data:     data,
		GasLimit: CommitGasLimit,
	})
	if err != nil {
		return s.fail(interfaces.ClassifyTxError(err))
	}
	r.cfg.Log.Info("Commit transaction sent",
		"session", s.id, "name", s.Name(), "tx", txHash, "fingerprint", fingerprint)

	receipt, err := r.waitReceipt(ctx, txHash)
	if err != nil {
		return s.fail(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return s.fail(&interfaces.TransactionRevertedError{Class: interfaces.RevertExecution, Detail: "commit reverted"})
	}
	s.mu.Lock()
	s.commitTx = txHash
	s.phase = interfaces.PhaseWaiting
	s.mu.Unlock()

	wait := r.cfg.FallbackWait
	if minAge, err := registrar.MinCommitmentAge(ctx); err == nil {
		wait = time.Duration(minAge.Int64())*time.Second + r.cfg.CommitBuffer
	} else {
		r.cfg.Log.Warn("Registrar timing unavailable, using fallback wait",
			"fallback", wait, "err", err)
	}
	r.cfg.Log.Info("Waiting for commitment to mature", "session", s.id, "wait", wait)
	if err := r.sleep(ctx, s, wait); err != nil {
		if errors.Is(err, ErrSessionDisposed) {
			return err
		}
		return s.fail(err)
	}

	s.setPhase(interfaces.PhaseReadyToReveal)
	return nil
}

// Reveal verifies the commitment window against fresh chain reads, asks the
// payment guard for a budget, and submits the register transaction with the
// exact tuple the fingerprint was derived from.
func (r *Registrar) Reveal(ctx context.Context, s *Session) error {
	if p := s.Phase(); p != interfaces.PhaseReadyToReveal {
		return fmt.Errorf("cannot reveal from phase %q", p)
	}

	registrar, _, err := r.writeClients(ctx, s.tld.TLD)
	if err != nil {
		return s.fail(err)
	}

	if err := r.verifyWindow(ctx, s, registrar); err != nil {
		if errors.Is(err, ErrSessionDisposed) {
			return err
		}
		return s.fail(err)
	}
	s.setPhase(interfaces.PhaseRevealing)

	quote, err := registrar.RentPrice(ctx, s.label, big.NewInt(s.duration))
	if err != nil {
		return s.fail(err)
	}
	// The contract checks msg.value against its own oracle quote, so the
	// value must stay in the oracle's units. The TLD's price scale is a
	// display policy only.
	price := quote.Total()

	data, err := registrar.PackRegister(s.call)
	if err != nil {
		return s.fail(fmt.Errorf("%w: %v", interfaces.ErrChainWrite, err))
	}
	auth, err := r.guard.Authorize(ctx, s.owner, price, ethereum.CallMsg{
		To:   &registrar.Handle.Address,
		Data: data,
	})
	if err != nil {
		return s.fail(err)
	}

	txHash, err := r.cfg.Wallet.SendTransaction(ctx, interfaces.TxRequest{
		To:       registrar.Handle.Address,
		Data:     data,
		Value:    auth.Value,
		GasLimit: auth.GasLimit,
	})
	if err != nil {
		return s.fail(interfaces.ClassifyTxError(err))
	}
	r.cfg.Log.Info("Register transaction sent",
		"session", s.id, "name", s.Name(), "tx", txHash,
		"value", auth.Value, "cost", interfaces.FormatNative(s.tld.NormalizePrice(auth.Value)),
		"gasLimit", auth.GasLimit)

	receipt, err := r.waitReceipt(ctx, txHash)
	if err != nil {
		return s.fail(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return s.fail(&interfaces.TransactionRevertedError{Class: interfaces.RevertExecution, Detail: "register reverted"})
	}

	s.mu.Lock()
	s.revealTx = txHash
	s.phase = interfaces.PhaseSucceeded
	s.mu.Unlock()
	r.cfg.Log.Info("Registration succeeded", "session", s.id, "name", s.Name(), "tx", txHash)
	return nil
}

// verifyWindow re-reads the on-chain commitment record and checks the
// registrar's validity window against it. The local countdown is advisory;
// only the chain's timestamps are authoritative. When the buffered minimum
// has not yet elapsed it sleeps the exact remaining delta and re-checks
// once.
func (r *Registrar) verifyWindow(ctx context.Context, s *Session, registrar *contracts.RegistrarClient) error {
	minAge := int64(r.cfg.FallbackWait / time.Second)
	if v, err := registrar.MinCommitmentAge(ctx); err == nil {
		minAge = v.Int64()
	}
	maxAge := int64(r.cfg.FallbackMaxAge / time.Second)
	if v, err := registrar.MaxCommitmentAge(ctx); err == nil {
		maxAge = v.Int64()
	}
	buffer := int64(r.cfg.CommitBuffer / time.Second)

	for attempt := 0; ; attempt++ {
		ts, err := registrar.CommitmentTimestamp(ctx, s.fingerprint)
		if err != nil {
			return err
		}
		if ts.Sign() == 0 {
			return interfaces.ErrCommitmentNotFound
		}
		now := r.cfg.Now().Unix()
		committedAt := ts.Int64()

		if now > committedAt+maxAge {
			return fmt.Errorf("%w: valid until %d, now %d",
				interfaces.ErrCommitmentExpired, committedAt+maxAge, now)
		}
		requiredAt := committedAt + minAge + buffer
		if now >= requiredAt {
			return nil
		}
		if attempt > 0 {
			return fmt.Errorf("%w: needs %ds more", interfaces.ErrCommitmentTooNew, requiredAt-now)
		}
		remaining := time.Duration(requiredAt-now) * time.Second
		r.cfg.Log.Info("Commitment not yet mature, waiting exact delta",
			"session", s.id, "remaining", remaining)
		if err := r.sleep(ctx, s, remaining); err != nil {
			return err
		}
	}
}

// sleep is a cancellable timer bound to the session's lifetime.
func (r *Registrar) sleep(ctx context.Context, s *Session, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.disposed:
		return ErrSessionDisposed
	}
}

func (r *Registrar) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReceiptTimeout)
	defer cancel()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := r.cfg.Backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for receipt of %s: %v", interfaces.ErrChainWrite, txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Registrar) writeClients(ctx context.Context, tld string) (*contracts.RegistrarClient, *contracts.ResolverClient, error) {
	controllerHandle, err := r.cfg.Contracts.Resolve(ctx, tld, interfaces.RoleRegistrarController)
	if err != nil {
		return nil, nil, err
	}
	resolverHandle, err := r.cfg.Contracts.Resolve(ctx, tld, interfaces.RolePublicResolver)
	if err != nil {
		return nil, nil, err
	}
	return contracts.NewRegistrarClient(r.caller, controllerHandle),
		contracts.NewResolverClient(r.caller, resolverHandle), nil
}
