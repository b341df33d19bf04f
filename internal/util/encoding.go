package util

import (
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD unicode normalization. Passwords are normalized
// before hashing so that visually identical input always verifies.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
