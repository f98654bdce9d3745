package identity

import "strings"

// NormalizeUsername folds a username to its canonical form: surrounding
// whitespace dropped, the rest lower-cased. Uniqueness checks compare the
// folded form, never the raw input.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail folds an email address the same way. RFC 5321 makes the
// local part case-sensitive, but no mainstream provider honors that, so
// addresses differing only in case are treated as the same account.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
