package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harentsoaR/renalcare-api/internal/models"
	"github.com/harentsoaR/renalcare-api/internal/utils"
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 10 * time.Minute

// OTPStore maps an identity (email) to its single live one-time code.
type OTPStore interface {
	// Issue replaces any previous entry for identity and returns the new code.
	Issue(ctx context.Context, identity, role string) (string, error)
	// Verify returns the stored role. It fails with models.ErrNotFound,
	// models.ErrExpired (and evicts the entry) or models.ErrMismatch (and
	// keeps the entry). A successful verify does not consume the entry.
	Verify(ctx context.Context, identity, code string) (string, error)
	Clear(ctx context.Context, identity string) error
}

type otpEntry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
}

// check applies the verify rules to an entry.
func (e otpEntry) check(now time.Time, code string) error {
	if now.After(e.ExpiresAt) {
		return models.ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.Code), []byte(code)) != 1 {
		return models.ErrMismatch
	}
	return nil
}

// OTPOption configures an OTP store.
type OTPOption func(*otpOptions)

type otpOptions struct {
	ttl  time.Duration
	now  func() time.Time
	code func() (string, error)
}

func WithTTL(ttl time.Duration) OTPOption {
	return func(o *otpOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) OTPOption {
	return func(o *otpOptions) { o.now = now }
}

func WithCodeGenerator(gen func() (string, error)) OTPOption {
	return func(o *otpOptions) { o.code = gen }
}

func buildOTPOptions(opts []OTPOption) otpOptions {
	o := otpOptions{ttl: DefaultOTPTTL, now: time.Now, code: utils.RandomCode}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o otpOptions) newEntry(role string) (otpEntry, error) {
	code, err := o.code()
	if err != nil {
		return otpEntry{}, fmt.Errorf("generate code: %w", err)
	}
	return otpEntry{Code: code, ExpiresAt: o.now().Add(o.ttl), Role: role}, nil
}

// MemoryOTPStore keeps codes in process memory. Entries are lost on restart.
type MemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]otpEntry
	opts    otpOptions
}

func NewMemoryOTPStore(opts ...OTPOption) *MemoryOTPStore {
	return &MemoryOTPStore{
		entries: make(map[string]otpEntry),
		opts:    buildOTPOptions(opts),
	}
}

func (s *MemoryOTPStore) Issue(_ context.Context, identity, role string) (string, error) {
	entry, err := s.opts.newEntry(role)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.entries[identity] = entry
	s.mu.Unlock()
	return entry.Code, nil
}

func (s *MemoryOTPStore) Verify(_ context.Context, identity, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identity]
	if !ok {
		return "", models.ErrNotFound
	}
	if err := entry.check(s.opts.now(), code); err != nil {
		if errors.Is(err, models.ErrExpired) {
			delete(s.entries, identity)
		}
		return "", err
	}
	return entry.Role, nil
}

func (s *MemoryOTPStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	delete(s.entries, identity)
	s.mu.Unlock()
	return nil
}
