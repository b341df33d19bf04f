package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTokenTTL = 24 * time.Hour

var errInvalidToken = errors.New("invalid or expired token")

// tokenIssuer signs and verifies session JWTs. The signing secret lives in a
// memguard enclave and is only decrypted for the duration of a sign or
// verify call.
type tokenIssuer struct {
	secret *memguard.Enclave
	ttl    time.Duration
}

func newTokenIssuer(secret string) *tokenIssuer {
	return &tokenIssuer{
		secret: memguard.NewEnclave([]byte(secret)),
		ttl:    sessionTokenTTL,
	}
}

// issue returns a signed HS256 session token for username.
func (ti *tokenIssuer) issue(username string) (string, error) {
	key, err := ti.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer key.Destroy()

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ti.ttl).Unix(),
		"jti":      uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// verify parses and validates a session token, returning the username it
// was issued for.
func (ti *tokenIssuer) verify(tokenString string) (string, error) {
	key, err := ti.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer key.Destroy()

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key.Bytes(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return "", errInvalidToken
	}
	return username, nil
}
