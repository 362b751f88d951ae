package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		pw   string
		rule Rule
	}{
		{"", RuleBlank},
		{"    ", RuleBlank},
		{"Ab#1", RuleLength},
		{"abcdefg#", RuleDigit},
		{"abcdefg1", RuleSymbol},
		{"Secret#2024", ""},
		{"my pass 1", ""},
	}

	for _, tc := range cases {
		t.Run(tc.pw, func(t *testing.T) {
			err := p.Validate(tc.pw)
			if tc.rule == "" {
				require.NoError(t, err)
				return
			}
			var perr *PolicyError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.rule, perr.Rule)
			assert.ErrorIs(t, err, ErrPolicy)
		})
	}
}

func TestPolicyUpperAndStrength(t *testing.T) {
	p := DefaultPolicy()
	p.RequireUpper = true

	var perr *PolicyError
	require.True(t, errors.As(p.Validate("secret#2024"), &perr))
	assert.Equal(t, RuleUpper, perr.Rule)

	p = DefaultPolicy()
	p.MinStrength = 4
	require.True(t, errors.As(p.Validate("Passw0rd!"), &perr))
	assert.Equal(t, RuleStrength, perr.Rule)

	assert.NoError(t, p.Validate("v8#Qz!r2Lm@x7Tq-Kp"))
}

func TestStrengthRange(t *testing.T) {
	assert.Equal(t, 0, Strength("password"))
	s := Strength("v8#Qz!r2Lm@x7Tq")
	assert.GreaterOrEqual(t, s, 3)
	assert.LessOrEqual(t, s, 4)
}
