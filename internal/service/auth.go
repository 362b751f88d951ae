package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Hussein-Mazeh/LocalVault/internal/vault"
	"github.com/Hussein-Mazeh/LocalVault/krypto"
)

// AuthState is the phase of an authentication attempt.
type AuthState int

const (
	AuthIdle AuthState = iota
	AuthLoading
	AuthSuccess
	AuthError
)

func (s AuthState) String() string {
	switch s {
	case AuthIdle:
		return "idle"
	case AuthLoading:
		return "loading"
	case AuthSuccess:
		return "success"
	case AuthError:
		return "error"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// AuthResult is the outcome of Register, Login or RestoreFromBackup.
// Err is set only when State is AuthError and always matches one of the
// vault error categories, or a context error for an abandoned attempt.
type AuthResult struct {
	State AuthState
	Err   error
}

// OK reports a successful attempt.
func (r AuthResult) OK() bool { return r.State == AuthSuccess }

// State returns the result of the latest attempt, AuthLoading while one runs.
func (s *Service) State() AuthResult {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Service) setState(r AuthResult) {
	s.stateMu.Lock()
	s.state = r
	s.stateMu.Unlock()
}

// attempt runs fn as one authentication attempt and records its outcome.
func (s *Service) attempt(op string, fn func() error) AuthResult {
	s.setState(AuthResult{State: AuthLoading})

	res := AuthResult{State: AuthSuccess}
	if err := fn(); err != nil {
		res = AuthResult{State: AuthError, Err: err}
		s.log.Warn().Str("op", op).Str("outcome", outcome(err)).Msg("authentication attempt failed")
	} else {
		s.log.Info().Str("op", op).Str("session", s.session.SessionID()).Msg("vault unlocked")
	}
	s.setState(res)
	return res
}

// outcome names the error category for logs. It never includes the error text.
func outcome(err error) string {
	switch {
	case errors.Is(err, vault.ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, vault.ErrAuthenticationFailure):
		return "authentication_failure"
	case errors.Is(err, vault.ErrNoUserRegistered):
		return "no_user"
	case errors.Is(err, vault.ErrBackupCorruptOrWrongPassword):
		return "backup_rejected"
	case errors.Is(err, vault.ErrStorage):
		return "storage"
	case errors.Is(err, vault.ErrInternal):
		return "internal"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "error"
	}
}

func isBlank(pw []byte) bool { return len(bytes.TrimSpace(pw)) == 0 }

// Register creates the master user for password, replacing any existing
// one, and unlocks the vault. The caller keeps ownership of password and
// should wipe it afterwards.
//
// Nothing is written unless the whole sequence succeeds. A cancelled ctx
// abandons the attempt after key derivation and before the write.
func (s *Service) Register(ctx context.Context, password []byte) AuthResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt("register", func() error { return s.register(ctx, password) })
}

func (s *Service) register(ctx context.Context, password []byte) error {
	if err := s.policy.Validate(string(password)); err != nil {
		return fmt.Errorf("%w: %w", vault.ErrPolicyViolation, err)
	}

	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return internalErr("generate salt", err)
	}
	key, err := krypto.DeriveKeyWithParams(password, salt, s.params)
	if err != nil {
		return internalErr("derive key", err)
	}
	defer key.Wipe()

	user, err := vault.SealVerification(key, salt, s.now().UTC())
	if err != nil {
		return internalErr("seal verification", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.ReplaceUser(ctx, user); err != nil {
		return storageErr("save master user", err)
	}

	s.session.SetKey(key)
	return nil
}

// Login unlocks the vault when password re-derives the registered key.
// A wrong password and a damaged verification record both report
// ErrAuthenticationFailure.
func (s *Service) Login(ctx context.Context, password []byte) AuthResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt("login", func() error {
		key, err := s.verify(ctx, password)
		if err != nil {
			return err
		}
		defer key.Wipe()
		if err := ctx.Err(); err != nil {
			return err
		}
		s.session.SetKey(key)
		return nil
	})
}

// VerifyMasterPassword checks password against the registered user without
// touching the session.
func (s *Service) VerifyMasterPassword(ctx context.Context, password []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, err := s.verify(ctx, password)
	key.Wipe()
	return err
}

// verify derives the candidate key and returns it when it opens the marker.
func (s *Service) verify(ctx context.Context, password []byte) (krypto.Key, error) {
	u, err := s.store.GetUser(ctx)
	if err != nil {
		return nil, storageErr("load master user", err)
	}
	if u == nil {
		return nil, vault.ErrNoUserRegistered
	}
	if isBlank(password) {
		return nil, vault.ErrAuthenticationFailure
	}

	key, err := krypto.DeriveKeyWithParams(password, u.Salt, s.params)
	if err != nil {
		return nil, vault.ErrAuthenticationFailure
	}
	if !vault.CheckVerification(key, *u) {
		key.Wipe()
		return nil, vault.ErrAuthenticationFailure
	}
	return key, nil
}

// RestoreFromBackup rebuilds a vault from a backup file.
//
// A fresh salt and key are derived from password and installed as a
// provisional session so imported credentials are encrypted under them.
// The backup itself is opened with the same password against its own salt.
// Only after the import succeeds is the master user replaced with one for
// the fresh key. On failure the session is cleared, and the folders,
// credentials and user record this restore wrote are removed.
func (s *Service) RestoreFromBackup(ctx context.Context, r io.Reader, password []byte) AuthResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt("restore", func() error { return s.restore(ctx, r, password) })
}

func (s *Service) restore(ctx context.Context, r io.Reader, password []byte) (err error) {
	if isBlank(password) {
		return vault.ErrBackupCorruptOrWrongPassword
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storageErr("read backup", err)
	}

	salt, err := krypto.NewRandomSalt()
	if err != nil {
		return internalErr("generate salt", err)
	}
	key, err := krypto.DeriveKeyWithParams(password, salt, s.params)
	if err != nil {
		return internalErr("derive key", err)
	}
	defer key.Wipe()

	user, err := vault.SealVerification(key, salt, s.now().UTC())
	if err != nil {
		return internalErr("seal verification", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.session.SetKey(key)
	written := &trackingVault{lockedVault: lockedVault{s}}
	userWritten := false
	defer func() {
		if err == nil {
			return
		}
		s.session.Clear()
		if rerr := written.rollback(context.WithoutCancel(ctx)); rerr != nil {
			s.log.Error().Str("outcome", outcome(storageErr("remove restored records", rerr))).Msg("restore cleanup failed")
		}
		if userWritten {
			if derr := s.store.DeleteUser(context.WithoutCancel(ctx)); derr != nil {
				s.log.Error().Str("outcome", outcome(storageErr("delete master user", derr))).Msg("restore cleanup failed")
			}
		}
	}()

	report, err := s.codec.Import(ctx, data, password, written)
	if err != nil {
		return err
	}

	userWritten = true
	if err := s.store.ReplaceUser(ctx, user); err != nil {
		return storageErr("save master user", err)
	}

	s.log.Info().
		Int("folders_created", report.FoldersCreated).
		Int("folders_reused", report.FoldersReused).
		Int("credentials", report.CredentialsImported).
		Msg("vault restored from backup")
	return nil
}

// Logout locks the vault.
func (s *Service) Logout() {
	if id := s.session.SessionID(); id != "" {
		s.log.Info().Str("session", id).Msg("vault locked")
	}
	s.session.Clear()
	s.setState(AuthResult{State: AuthIdle})
}

// NeedsMasterSetup reports whether no master user is registered yet.
func (s *Service) NeedsMasterSetup(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, err := s.store.GetUser(ctx)
	if err != nil {
		return false, storageErr("load master user", err)
	}
	return u == nil, nil
}
