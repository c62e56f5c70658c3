// AngelaMos | 2026
// policy.go

package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 10
	MaxPasswordLength = 128

	passwordSpecials = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	passwordValid    = "password is valid"
)

var emailPattern = regexp.MustCompile(
	`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`,
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

type passwordRule struct {
	reason string
	ok     func(string) bool
}

// Rules run in order; the first failure is the one reported.
var passwordRules = []passwordRule{
	{
		reason: "password must be at least 10 characters long",
		ok: func(p string) bool {
			return utf8.RuneCountInString(p) >= MinPasswordLength
		},
	},
	{
		reason: "password must be at most 128 characters long",
		ok: func(p string) bool {
			return utf8.RuneCountInString(p) <= MaxPasswordLength
		},
	},
	{
		reason: "password must contain at least one uppercase letter",
		ok:     func(p string) bool { return strings.IndexFunc(p, unicode.IsUpper) >= 0 },
	},
	{
		reason: "password must contain at least one lowercase letter",
		ok:     func(p string) bool { return strings.IndexFunc(p, unicode.IsLower) >= 0 },
	},
	{
		reason: "password must contain at least one digit",
		ok:     func(p string) bool { return strings.IndexFunc(p, unicode.IsDigit) >= 0 },
	},
	{
		reason: "password must contain at least one special character",
		ok:     func(p string) bool { return strings.ContainsAny(p, passwordSpecials) },
	},
}

func ValidatePasswordStrength(password string) (bool, string) {
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			return false, rule.reason
		}
	}
	return true, passwordValid
}
