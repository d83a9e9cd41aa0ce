// Package pairing coordinates exclusive one-to-one private chat sessions.
//
// Each username is Idle, Pending (an outstanding proposal) or Active (a live
// paired session). Pairing is always mutual: whenever a user is Pending or
// Active, the peer's record points back. A username with no record is Idle.
package pairing

import (
	"errors"
	"sync"
)

// Status is a username's private-session state.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	default:
		return "idle"
	}
}

var (
	// ErrSelfBusy means the requester is already pending or in a session.
	ErrSelfBusy = errors.New("requester busy")
	// ErrRecipientBusy means the recipient is already pending or in a session.
	// Pending counts as busy so a recipient never accumulates competing invites.
	ErrRecipientBusy = errors.New("recipient busy")
	// ErrRecipientOffline means the recipient has no live connection.
	ErrRecipientOffline = errors.New("recipient offline")
	// ErrSessionConflict means the proposal being accepted is no longer valid.
	ErrSessionConflict = errors.New("session conflict")
	// ErrRequesterOffline means the requester disconnected before acceptance.
	ErrRequesterOffline = errors.New("requester offline")
)

// Liveness answers whether a username still holds a live connection. The
// presence registry implements it.
type Liveness interface {
	IsOnline(username string) bool
}

type record struct {
	status Status
	peer   string
}

// Machine owns the pairing table. All transitions are atomic with respect to
// concurrent callers, including the two-sided Pending→Active step: a partial
// pairing (one side Active, the other not) can never be observed.
type Machine struct {
	mu       sync.Mutex
	records  map[string]*record
	liveness Liveness
}

// NewMachine returns a pairing machine that consults liveness for the
// recipient/requester checks.
func NewMachine(liveness Liveness) *Machine {
	return &Machine{
		records:  make(map[string]*record),
		liveness: liveness,
	}
}

// Request proposes a private chat from requester to recipient. On success
// both sides become Pending with mutual peer pointers for the duration of the
// outstanding invite.
func (m *Machine) Request(requester, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusLocked(requester) != StatusIdle {
		return ErrSelfBusy
	}
	if m.statusLocked(recipient) != StatusIdle {
		return ErrRecipientBusy
	}
	if !m.liveness.IsOnline(recipient) {
		return ErrRecipientOffline
	}

	m.records[requester] = &record{status: StatusPending, peer: recipient}
	m.records[recipient] = &record{status: StatusPending, peer: requester}
	return nil
}

// Accept promotes the proposal from requester to accepter into an Active
// session. The proposal is re-validated: if either side moved on since the
// invite was sent the accept fails with ErrSessionConflict, and if the
// requester is gone it fails with ErrRequesterOffline. Both records flip to
// Active in one step.
func (m *Machine) Accept(accepter, requester string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pendingPairLocked(accepter, requester) {
		return ErrSessionConflict
	}
	if !m.liveness.IsOnline(requester) {
		m.clearPairLocked(accepter, requester)
		return ErrRequesterOffline
	}

	m.records[accepter] = &record{status: StatusActive, peer: requester}
	m.records[requester] = &record{status: StatusActive, peer: accepter}
	return nil
}

// Reject withdraws the proposal from requester to rejecter, returning both
// sides to Idle. Rejecting a proposal that no longer exists is a no-op; the
// caller still notifies the requester either way.
func (m *Machine) Reject(rejecter, requester string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingPairLocked(rejecter, requester) {
		m.clearPairLocked(rejecter, requester)
	}
}

// End tears down the ender's Active session. It returns the peer whose
// session ended, or false if the ender had no Active peer (no-op).
func (m *Machine) End(ender string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[ender]
	if !ok || rec.status != StatusActive {
		return "", false
	}
	peer := rec.peer
	m.clearPairLocked(ender, peer)
	return peer, true
}

// DisconnectResult describes the cleanup performed for a departing user.
type DisconnectResult struct {
	// Peer is the other side of whatever pairing the user held, if any.
	Peer string
	// WasActive reports whether a live session was torn down, in which case
	// the peer is owed an ended-by-disconnect notification.
	WasActive bool
}

// Disconnect clears any state the user held: an Active session is torn down
// and any outstanding proposal (either direction) is abandoned. The peer's
// side is cleared in the same step.
func (m *Machine) Disconnect(username string) DisconnectResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[username]
	if !ok {
		return DisconnectResult{}
	}
	res := DisconnectResult{Peer: rec.peer, WasActive: rec.status == StatusActive}
	m.clearPairLocked(username, rec.peer)
	return res
}

// StatusOf returns the user's current status and peer, if any.
func (m *Machine) StatusOf(username string) (Status, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[username]
	if !ok {
		return StatusIdle, ""
	}
	return rec.status, rec.peer
}

// ActiveSessions returns the number of live paired sessions.
func (m *Machine) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active int
	for _, rec := range m.records {
		if rec.status == StatusActive {
			active++
		}
	}
	return active / 2
}

func (m *Machine) statusLocked(username string) Status {
	if rec, ok := m.records[username]; ok {
		return rec.status
	}
	return StatusIdle
}

func (m *Machine) pendingPairLocked(a, b string) bool {
	ra, ok := m.records[a]
	if !ok || ra.status != StatusPending || ra.peer != b {
		return false
	}
	rb, ok := m.records[b]
	return ok && rb.status == StatusPending && rb.peer == a
}

// clearPairLocked removes both sides of a pairing. Records back at Idle are
// deleted rather than kept around.
func (m *Machine) clearPairLocked(a, b string) {
	delete(m.records, a)
	if rb, ok := m.records[b]; ok && rb.peer == a {
		delete(m.records, b)
	}
}
