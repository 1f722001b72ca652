// Package classify contains the pure token classifier and header-name mapper
// used by the line parser. Classification applies an ordered cascade of
// pattern rules, most specific first; the first matching rule wins.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dindinbro/discreen/pkg/core"
)

// Kind is the classification of an isolated token.
type Kind string

const (
	KindEmail      Kind = core.FieldEmail
	KindIP         Kind = core.FieldIP
	KindPhone      Kind = core.FieldTelephone
	KindHash       Kind = core.FieldHash
	KindURL        Kind = core.FieldURL
	KindCivilite   Kind = core.FieldCivilite
	KindIBAN       Kind = core.FieldIBAN
	KindBIC        Kind = core.FieldBIC
	KindDate       Kind = core.FieldDateNaiss
	KindCodePostal Kind = core.FieldCodePostal
	KindAdresse    Kind = core.FieldAdresse
	KindVIN        Kind = core.FieldVIN
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	ipRe       = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	phoneRe    = regexp.MustCompile(`^\+?\d[\d\s\-().]{6,}$`)
	hashRe     = regexp.MustCompile(`^[a-fA-F0-9]{32,128}$`)
	hashSaltRe = regexp.MustCompile(`^[a-fA-F0-9]{32,128}:[^\s:]+$`)
	urlRe      = regexp.MustCompile(`^https?://`)
	ibanRe     = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{10,30}$`)
	bicRe      = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	dateSlash  = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{4}$`)
	dateISO    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ].*)?$`)
	postalRe   = regexp.MustCompile(`^\d{5}$`)
	addressRe  = regexp.MustCompile(`^\d+\s*[,]?\s+\p{L}`)
	vinRe      = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	digitRe    = regexp.MustCompile(`\d`)
)

var civilites = map[string]bool{
	"m":            true,
	"m.":           true,
	"mr":           true,
	"mme":          true,
	"mlle":         true,
	"monsieur":     true,
	"madame":       true,
	"mademoiselle": true,
}

// Classify determines the kind of an isolated token. It is deterministic,
// never panics, and returns false when no rule matches.
func Classify(token string) (Kind, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", false
	}

	switch {
	case emailRe.MatchString(t):
		return KindEmail, true
	case ipRe.MatchString(t):
		return KindIP, true
	case phoneRe.MatchString(t):
		return KindPhone, true
	case hashRe.MatchString(t), hashSaltRe.MatchString(t):
		return KindHash, true
	case urlRe.MatchString(strings.ToLower(t)):
		return KindURL, true
	case civilites[strings.ToLower(t)]:
		return KindCivilite, true
	case ibanRe.MatchString(strings.ToUpper(strings.ReplaceAll(t, " ", ""))):
		return KindIBAN, true
	// BIC requires at least one digit; otherwise any 8-letter word matches.
	case bicRe.MatchString(strings.ToUpper(t)) && digitRe.MatchString(t):
		return KindBIC, true
	case dateSlash.MatchString(t), dateISO.MatchString(t):
		return KindDate, true
	case postalRe.MatchString(t) && postalInRange(t):
		return KindCodePostal, true
	case vinRe.MatchString(strings.ToUpper(t)) && digitRe.MatchString(t):
		return KindVIN, true
	case len(t) >= 8 && addressRe.MatchString(t):
		return KindAdresse, true
	}

	return "", false
}

// postalInRange keeps 5-digit codes in the metropolitan + overseas range,
// rejecting things like 00000 or 99999 that are usually row counters.
func postalInRange(s string) bool {
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 1000 && n <= 98999
}

// IsHash reports whether the token looks like a password hash (bare hex of
// a known digest length, optionally followed by a :salt suffix).
func IsHash(token string) bool {
	return hashRe.MatchString(token) || hashSaltRe.MatchString(token)
}

// IsURL reports whether the token starts with an http(s) scheme.
func IsURL(token string) bool {
	return urlRe.MatchString(strings.ToLower(token))
}
