// Package signer provides the simulated wallet capability that gates
// trade submission. Connection is a timed mock producing a random hex
// address and a random starting balance; nothing is signed and nothing
// touches a chain. All randomness flows through an injected source so
// tests can drive it deterministically.
package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConnected is returned when an operation requires a connected
	// wallet.
	ErrNotConnected = errors.New("signer: wallet not connected")

	// ErrInsufficientBalance is returned when a debit exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("signer: insufficient balance")
)

// DefaultConnectDelay simulates the wallet handshake.
const DefaultConnectDelay = 1500 * time.Millisecond

// Signer is a mock wallet: a connection flag, a random address, and a
// spendable balance. Safe for concurrent use.
type Signer struct {
	mu        sync.Mutex
	rng       *rand.Rand
	delay     time.Duration
	connected bool
	address   string
	balance   decimal.Decimal
}

// New creates a signer seeded for deterministic behavior in tests.
func New(seed int64) *Signer {
	return &Signer{
		rng:   rand.New(rand.NewSource(seed)),
		delay: DefaultConnectDelay,
	}
}

// NewWithDelay creates a signer with a custom connection delay. Tests
// pass zero to skip the simulated handshake.
func NewWithDelay(seed int64, delay time.Duration) *Signer {
	s := New(seed)
	s.delay = delay
	return s
}

// Connect simulates the wallet handshake: it waits out the configured
// delay (or the context), then assigns a random 20-byte hex address and
// a random balance in [1000, 6000). Reconnecting an already connected
// signer keeps the existing address and balance.
func (s *Signer) Connect(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.connected {
		addr := s.address
		s.mu.Unlock()
		return addr, nil
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 20)
	s.rng.Read(buf)
	s.address = "0x" + hex.EncodeToString(buf)
	s.balance = decimal.NewFromInt(int64(s.rng.Intn(5000)) + 1000)
	s.connected = true

	return s.address, nil
}

// Disconnect clears the connection, address and balance.
func (s *Signer) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.address = ""
	s.balance = decimal.Zero
}

// IsConnected reports whether the wallet is connected.
func (s *Signer) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Address returns the connected address, or the empty string.
func (s *Signer) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Balance returns the current spendable balance.
func (s *Signer) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Debit removes amount from the balance, rejecting overdrafts.
func (s *Signer) Debit(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if amount.GreaterThan(s.balance) {
		return ErrInsufficientBalance
	}
	s.balance = s.balance.Sub(amount)
	return nil
}

// Credit adds amount to the balance.
func (s *Signer) Credit(amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = s.balance.Add(amount)
}
