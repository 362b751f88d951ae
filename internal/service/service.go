// Package service exposes the vault operations used by the CLI: master
// password registration and login, credential and folder management, and
// encrypted backup export and import.
//
// A Service serializes vault-wide work with a read/write lock. Single-record
// operations share the read side; register, login, restore, import and
// export take the write side, so a save can never interleave with an import.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hussein-Mazeh/LocalVault/auth"
	"github.com/Hussein-Mazeh/LocalVault/internal/backup"
	"github.com/Hussein-Mazeh/LocalVault/internal/session"
	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// Service exposes high-level vault operations.
type Service struct {
	store   vault.Store
	session *session.Holder
	codec   *backup.Codec
	policy  auth.Policy
	params  krypto.Argon2Params
	log     zerolog.Logger
	now     func() time.Time

	mu sync.RWMutex // vault lock

	stateMu sync.Mutex
	state   AuthResult
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithSession supplies the session holder. By default New creates one with
// the standard idle timeout.
func WithSession(h *session.Holder) Option {
	return func(s *Service) { s.session = h }
}

// WithPolicy replaces auth.DefaultPolicy for registration.
func WithPolicy(p auth.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithKDFParams overrides the master key derivation cost for the vault and
// for backups. Only tests should need this.
func WithKDFParams(p krypto.Argon2Params) Option {
	return func(s *Service) { s.params = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBackupCodec supplies the backup codec.
func WithBackupCodec(c *backup.Codec) Option {
	return func(s *Service) { s.codec = c }
}

// New returns a service over store. The vault starts locked.
func New(store vault.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: auth.DefaultPolicy(),
		params: krypto.SchemeParams,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == nil {
		s.session = session.New(session.WithClock(s.now), session.WithExpiryHook(s.logExpiry))
	}
	if s.codec == nil {
		s.codec = backup.NewCodec(backup.WithKDFParams(s.params), backup.WithClock(s.now))
	}
	return s
}

// Close locks the vault and closes the store when it is closable.
func (s *Service) Close() error {
	s.session.Clear()
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// IsUnlocked reports whether a live session key exists. It counts as activity.
func (s *Service) IsUnlocked() bool { return s.session.IsLoggedIn() }

func (s *Service) logExpiry(id string) {
	s.log.Info().Str("session", id).Msg("session expired after inactivity")
}

// sessionKey returns a copy of the live key, or ErrUnauthenticated.
// The caller must wipe it.
func (s *Service) sessionKey() (krypto.Key, error) {
	key, ok := s.session.Key()
	if !ok {
		return nil, vault.ErrUnauthenticated
	}
	return key, nil
}

func (s *Service) requireSession() error {
	key, err := s.sessionKey()
	key.Wipe()
	return err
}

// storageErr keeps taxonomy and context errors as they are and files
// everything else under ErrStorage.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vault.ErrNotFound),
		errors.Is(err, vault.ErrInvalidFolder),
		errors.Is(err, vault.ErrInvalidCredential),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, vault.ErrStorage, err)
	}
}

// internalErr files crypto and randomness failures under ErrInternal.
// Errors that already carry a vault category pass through.
func internalErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vault.ErrUnauthenticated),
		errors.Is(err, vault.ErrStorage),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, vault.ErrInternal, err)
	}
}
