package registration

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/hii-network/go-hns/contracts"
	"github.com/hii-network/go-hns/interfaces"
	"github.com/hii-network/go-hns/tldconfig"
)

// Session is one client-local registration attempt. It owns its secret and
// fingerprint; neither is ever reused across sessions. The machine is the
// only writer; observers read snapshots.
type Session struct {
	id       string
	label    string
	tld      tldconfig.TLDRecord
	owner    common.Address
	duration int64 // seconds
	secret   string
	email    string

	mu          sync.Mutex
	phase       interfaces.Phase
	call        contracts.RegisterCall
	fingerprint common.Hash
	commitTx    common.Hash
	revealTx    common.Hash
	err         error

	disposed chan struct{}
	disposeOnce sync.Once
}

func newSession(label string, tld tldconfig.TLDRecord, owner common.Address, durationSeconds int64, secret, email string) *Session {
	return &Session{
		id:       uuid.NewString(),
		label:    label,
		tld:      tld,
		owner:    owner,
		duration: durationSeconds,
		secret:   secret,
		email:    email,
		phase:    interfaces.PhaseForm,
		disposed: make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the full domain name the session registers.
func (s *Session) Name() string { return s.label + s.tld.TLD }

// Snapshot returns a read-only copy of the session state.
func (s *Session) Snapshot() interfaces.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := interfaces.SessionView{
		ID:          s.id,
		Name:        s.label + s.tld.TLD,
		Phase:       s.phase,
		Fingerprint: s.fingerprint,
		CommitTx:    s.commitTx,
		RevealTx:    s.revealTx,
	}
	if s.err != nil {
		view.Error = s.err.Error()
	}
	return view
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Phase returns the current phase.
func (s *Session) Phase() interfaces.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Dispose stops the session's local timers. Transactions already broadcast
// are not revocable and are unaffected.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() { close(s.disposed) })
}

func (s *Session) setPhase(p interfaces.Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.phase = interfaces.PhaseFailed
	s.err = err
	s.mu.Unlock()
	return err
}
