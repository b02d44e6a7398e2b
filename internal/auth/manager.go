// Package auth implements the in-memory guest token manager. A token is a
// single-use, time-bounded credential: issued out-of-band over HTTP, then
// claimed exactly once by a live WebSocket connection and revoked when that
// session ends.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// Token is one guest credential.
type Token struct {
	// Value is the opaque URL-safe secret handed to the client.
	Value string
	// IssuedAt is the issuance instant.
	IssuedAt time.Time
	// ExpiresAt is the instant past which the token is unclaimable.
	ExpiresAt time.Time
	// MemberID is the claimant identity. Empty until claimed; once set it
	// never changes.
	MemberID string
}

// Claimed reports whether the token has been bound to a member.
func (t Token) Claimed() bool {
	return t.MemberID != ""
}

// ExpiredAt reports whether the token is past its expiry at the given instant.
func (t Token) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Manager owns the set of live guest tokens and provides atomic
// issue/claim/revoke operations. All methods are safe for concurrent use;
// nothing blocks on I/O while the lock is held.
type Manager struct {
	mu         sync.Mutex
	tokens     map[string]*Token
	ttl        time.Duration
	tokenBytes int
	clock      func() time.Time
}

// NewManager creates an empty token Manager.
//
// Precondition: ttl must be positive; tokenBytes must be >= 16.
// Postcondition: Returns a non-nil Manager with no live tokens.
func NewManager(ttl time.Duration, tokenBytes int) *Manager {
	return &Manager{
		tokens:     make(map[string]*Token),
		ttl:        ttl,
		tokenBytes: tokenBytes,
		clock:      time.Now,
	}
}

// Issue generates a fresh unclaimed token and adds it to the live set.
// The returned copy is the only time the secret leaves the manager.
//
// Postcondition: The token is live, unclaimed, and expires TTL from now.
func (m *Manager) Issue() (Token, error) {
	buf := make([]byte, m.tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, fmt.Errorf("generating token: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	now := m.clock()
	tok := &Token{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.tokens[value] = tok
	m.mu.Unlock()

	return *tok, nil
}

// Claim binds the token to memberID if and only if the token is live,
// unexpired, and not yet claimed. The check-then-set runs in a single
// critical section, so concurrent claims on one token produce exactly one
// winner. An expired token found here is deleted as a side effect.
//
// Postcondition: Returns (claimed copy, true) on success, (zero, false)
// when the token is empty, absent, expired, or already claimed.
func (m *Manager) Claim(value, memberID string) (Token, bool) {
	if value == "" {
		return Token{}, false
	}
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[value]
	if !ok {
		return Token{}, false
	}
	if tok.ExpiredAt(now) {
		delete(m.tokens, value)
		return Token{}, false
	}
	if tok.Claimed() {
		return Token{}, false
	}
	tok.MemberID = memberID
	return *tok, true
}

// Revoke removes the token from the live set. Idempotent; no-op when the
// token is empty or already gone.
func (m *Manager) Revoke(value string) {
	if value == "" {
		return
	}
	m.mu.Lock()
	delete(m.tokens, value)
	m.mu.Unlock()
}

// Count returns the number of live tokens, claimed or not.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// PruneExpired deletes every expired token and returns how many were
// removed. Claim already drops expired tokens it touches; the prune loop
// exists so tokens nobody ever claims do not accumulate.
func (m *Manager) PruneExpired() int {
	now := m.clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for value, tok := range m.tokens {
		if tok.ExpiredAt(now) {
			delete(m.tokens, value)
			removed++
		}
	}
	return removed
}

// DropAll invalidates every live token. Used on shutdown.
//
// Postcondition: Count() == 0.
func (m *Manager) DropAll() {
	m.mu.Lock()
	m.tokens = make(map[string]*Token)
	m.mu.Unlock()
}
