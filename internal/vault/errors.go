package vault

import "errors"

// Error categories surfaced to callers of the vault core. Callers match them
// with errors.Is; low-level crypto and storage errors never cross the
// service boundary unwrapped.
var (
	ErrPolicyViolation              = errors.New("password does not meet policy requirements")
	ErrAuthenticationFailure        = errors.New("incorrect password")
	ErrNoUserRegistered             = errors.New("no user registered")
	ErrUnauthenticated              = errors.New("vault locked: no active session")
	ErrBackupCorruptOrWrongPassword = errors.New("wrong password or corrupt backup file")
	ErrStorage                      = errors.New("could not save or load vault data")
	ErrInternal                     = errors.New("vault operation failed")

	ErrNotFound          = errors.New("not found")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInvalidFolder     = errors.New("invalid folder")
)

// FieldDecryptionSentinel replaces a single field that failed to decrypt so
// the rest of the record stays readable.
const FieldDecryptionSentinel = "Error"
