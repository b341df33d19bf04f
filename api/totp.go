package api

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"plexman/internal/util"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30
	// totpWindow allows one 30-second step of clock drift either way,
	// matching what authenticator apps expect.
	totpWindow = 1
	totpIssuer = "Plex Manager"
)

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// generateTOTPSecret returns a new base32-encoded shared secret.
func generateTOTPSecret() (string, error) {
	raw, err := util.RandomBytes(totpSecretBytes)
	if err != nil {
		return "", err
	}
	return totpEncoding.EncodeToString(raw), nil
}

// validTOTPCode reports whether code is exactly six ASCII digits.
func validTOTPCode(code string) bool {
	if len(code) != totpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// verifyTOTPCode checks code against secret at the given time, tolerating
// totpWindow steps of drift in either direction.
func verifyTOTPCode(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if !validTOTPCode(code) {
		return false
	}
	for step := -totpWindow; step <= totpWindow; step++ {
		at := now.Add(time.Duration(step*totpPeriod) * time.Second)
		expected, err := totpCodeAt(secret, at)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// totpCodeAt computes the RFC 6238 code for secret at the given time.
func totpCodeAt(secret string, at time.Time) (string, error) {
	key, err := totpEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decoding totp secret: %w", err)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(at.Unix()/totpPeriod))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := (int(sum[offset])&0x7f)<<24 |
		int(sum[offset+1])<<16 |
		int(sum[offset+2])<<8 |
		int(sum[offset+3])
	return fmt.Sprintf("%06d", truncated%1000000), nil
}

// provisioningURL builds the otpauth:// URL scanned during enrollment.
func provisioningURL(secret, username string) string {
	label := url.PathEscape(totpIssuer + ":" + username)
	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", totpIssuer)
	values.Set("algorithm", "SHA1")
	values.Set("digits", strconv.Itoa(totpDigits))
	values.Set("period", strconv.Itoa(totpPeriod))
	return "otpauth://totp/" + label + "?" + values.Encode()
}
