package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nbutton23/zxcvbn-go"
)

// Rule names the policy check a password failed.
type Rule string

const (
	RuleBlank    Rule = "blank"
	RuleLength   Rule = "length"
	RuleDigit    Rule = "digit"
	RuleSymbol   Rule = "symbol"
	RuleUpper    Rule = "upper"
	RuleStrength Rule = "strength"
)

// ErrPolicy is matched by every *PolicyError.
var ErrPolicy = errors.New("password does not meet policy requirements")

// PolicyError reports the first rule a master password violated.
type PolicyError struct {
	Rule Rule
	Msg  string
}

func (e *PolicyError) Error() string { return e.Msg }

func (e *PolicyError) Is(target error) bool { return target == ErrPolicy }

// Policy holds the master password requirements.
// MinStrength is a zxcvbn score (0-4); zero disables the strength check.
type Policy struct {
	MinLength     int
	RequireDigit  bool
	RequireSymbol bool
	RequireUpper  bool
	MinStrength   int
}

// DefaultPolicy returns the registration policy: at least 8 characters,
// one digit and one non-alphanumeric symbol.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// Validate applies the policy to pw and returns a *PolicyError on failure.
func (p Policy) Validate(pw string) error {
	if strings.TrimSpace(pw) == "" {
		return &PolicyError{Rule: RuleBlank, Msg: "password cannot be blank"}
	}
	if len([]rune(pw)) < p.MinLength {
		return &PolicyError{Rule: RuleLength, Msg: fmt.Sprintf("password must be at least %d characters long", p.MinLength)}
	}
	if p.RequireDigit && !hasDigit(pw) {
		return &PolicyError{Rule: RuleDigit, Msg: "password must include a digit"}
	}
	if p.RequireSymbol && !hasSymbol(pw) {
		return &PolicyError{Rule: RuleSymbol, Msg: "password must include a symbol"}
	}
	if p.RequireUpper && !hasUpper(pw) {
		return &PolicyError{Rule: RuleUpper, Msg: "password must include an uppercase letter"}
	}
	if p.MinStrength > 0 {
		if score := Strength(pw); score < p.MinStrength {
			return &PolicyError{Rule: RuleStrength, Msg: fmt.Sprintf("password is too guessable (strength %d of 4, need %d)", score, p.MinStrength)}
		}
	}
	return nil
}

// Strength returns the zxcvbn score of pw, from 0 (weakest) to 4.
func Strength(pw string) int {
	return zxcvbn.PasswordStrength(pw, nil).Score
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// hasSymbol reports any rune that is neither a letter nor a digit.
func hasSymbol(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
