package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"plexman/internal/util"
	"plexman/storage"
)

const (
	userBucket = "users"
	// resetTokenBytes is the entropy of a password reset token.
	resetTokenBytes = 32
	resetTokenTTL   = 1 * time.Hour
)

var errUserNotFound = errors.New("user not found")

// userRecord is the persisted server-side account state. The reset token is
// stored hashed; the plaintext exists only in the request-reset response.
type userRecord struct {
	Username       string    `json:"username"`
	PasswordHash   string    `json:"password_hash"`
	TOTPSecret     string    `json:"totp_secret"`
	TOTPEnabled    bool      `json:"totp_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	ResetTokenHash string    `json:"reset_token_hash,omitempty"`
	ResetExpiresAt time.Time `json:"reset_expires_at,omitempty"`
}

// userStore persists account records through a storage.Repository.
type userStore struct {
	repo storage.Repository
}

func newUserStore(repo storage.Repository) *userStore {
	return &userStore{repo: repo}
}

func (us *userStore) load(username string) (*userRecord, error) {
	data, err := us.repo.Get(userBucket, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding user record: %w", err)
	}
	return &record, nil
}

func (us *userStore) save(record *userRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return us.repo.Put(userBucket, record.Username, data)
}

func (us *userStore) exists(username string) bool {
	_, err := us.repo.Get(userBucket, username)
	return err == nil
}

// create registers a new account with a hashed password and a fresh TOTP
// secret. TOTP starts disabled until the first code is verified.
func (us *userStore) create(username, password string) (*userRecord, error) {
	if us.exists(username) {
		return nil, errors.New("user already exists")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(util.Normalize(password)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	secret, err := generateTOTPSecret()
	if err != nil {
		return nil, err
	}
	record := &userRecord{
		Username:     username,
		PasswordHash: string(hash),
		TOTPSecret:   secret,
		CreatedAt:    time.Now().UTC(),
	}
	if err := us.save(record); err != nil {
		return nil, err
	}
	return record, nil
}

// verifyPassword checks a candidate password against the stored hash.
func (us *userStore) verifyPassword(record *userRecord, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(util.Normalize(password)))
	return err == nil
}

// issueResetToken generates a single-use password reset token for username
// and returns the plaintext. Only the hash is persisted.
func (us *userStore) issueResetToken(username string) (string, error) {
	record, err := us.load(username)
	if err != nil {
		return "", err
	}
	token, err := util.RandomURLToken(resetTokenBytes)
	if err != nil {
		return "", err
	}
	record.ResetTokenHash = hashResetToken(token)
	record.ResetExpiresAt = time.Now().UTC().Add(resetTokenTTL)
	if err := us.save(record); err != nil {
		return "", err
	}
	return token, nil
}

// consumeResetToken finds the account holding an unexpired token matching
// the candidate, updates its password, and clears the token so it cannot be
// replayed.
func (us *userStore) consumeResetToken(token, newPassword string) error {
	record, err := us.findByResetToken(token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(util.Normalize(newPassword)), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	record.PasswordHash = string(hash)
	record.ResetTokenHash = ""
	record.ResetExpiresAt = time.Time{}
	return us.save(record)
}

func (us *userStore) findByResetToken(token string) (*userRecord, error) {
	candidate := []byte(hashResetToken(token))
	usernames, err := us.repo.List(userBucket)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, username := range usernames {
		record, err := us.load(username)
		if err != nil {
			continue
		}
		if record.ResetTokenHash == "" || now.After(record.ResetExpiresAt) {
			continue
		}
		if subtle.ConstantTimeCompare(candidate, []byte(record.ResetTokenHash)) == 1 {
			return record, nil
		}
	}
	return nil, errors.New("invalid or expired reset token")
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
