package service

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	DefaultMinPasswordLength = 8
	defaultMinClasses        = 3
)

// PasswordPolicy is checked locally so obviously weak passwords never cost
// a directory round trip. The domain policy still has the final word.
type PasswordPolicy struct {
	MinLength int

	// MinClasses is how many of upper, lower, digit and symbol must appear.
	MinClasses int
}

func (p PasswordPolicy) withDefaults() PasswordPolicy {
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinPasswordLength
	}
	if p.MinClasses <= 0 || p.MinClasses > 4 {
		p.MinClasses = defaultMinClasses
	}
	return p
}

// Check validates newPassword for username. oldPassword is empty on the
// scan flows, where the old password is unknown.
func (p PasswordPolicy) Check(username, oldPassword, newPassword string) error {
	p = p.withDefaults()
	var violations []string

	if len([]rune(newPassword)) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}

	if n := characterClasses(newPassword); n < p.MinClasses {
		violations = append(violations,
			fmt.Sprintf("must mix at least %d of: upper case, lower case, digits, symbols", p.MinClasses))
	}

	if u := strings.ToLower(strings.TrimSpace(username)); len(u) >= 3 && strings.Contains(strings.ToLower(newPassword), u) {
		violations = append(violations, "must not contain the account name")
	}

	if oldPassword != "" && oldPassword == newPassword {
		violations = append(violations, "must differ from the old password")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}

func characterClasses(s string) int {
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	n := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}
