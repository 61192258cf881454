// Package crypto provides the authenticated symmetric encryption, content
// hashing, and HMAC signing primitives the Evidence Vault and audit trail
// build on.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// defaultSalt is the implementation-defined PBKDF2 salt used when a caller
// derives a key from a passphrase without overriding it via configuration.
var defaultSalt = []byte("keiri-audit-engine-salt-v1")

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32 // AES-256
)

// Manager performs encrypt/decrypt/hash/HMAC with a single symmetric key.
// The same instance must be used to encrypt and decrypt; losing the key
// loses the data.
type Manager struct {
	key []byte
}

// NewManager derives a key from passphrase via PBKDF2-HMAC-SHA256 using the
// given salt, or the package default salt when salt is nil.
func NewManager(passphrase string, salt []byte) *Manager {
	if salt == nil {
		salt = defaultSalt
	}
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
	return &Manager{key: key}
}

// NewManagerFromKey wraps an already-derived or randomly generated key.
func NewManagerFromKey(key []byte) (*Manager, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", keyLength, len(key))
	}
	return &Manager{key: key}, nil
}

// GenerateKey produces a fresh random 32-byte key, for callers that are not
// deriving from a passphrase.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generating key: %w", err)
	}
	return key, nil
}

// Encrypt performs AES-256-GCM authenticated encryption, prefixing the
// nonce to the ciphertext.
func (m *Manager) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt, failing if the authentication tag does not
// verify (tampered or wrong key).
func (m *Manager) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(m.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	ns := gcm.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("crypto: ciphertext too short")
	}
	nonce, sealed := ciphertext[:ns], ciphertext[ns:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (tampered or wrong key): %w", err)
	}
	return plaintext, nil
}

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HMAC returns the hex-encoded HMAC-SHA256 of data, keyed by the manager's
// symmetric key.
func (m *Manager) HMAC(data []byte) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex-encoded HMAC in constant time.
func (m *Manager) VerifyHMAC(data []byte, signature string) bool {
	expected, err := hex.DecodeString(m.HMAC(data))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, got) == 1
}

// KeyInfo is the diagnostic-safe description of the manager's key: it never
// exposes the raw key, only a truncated hash of it.
type KeyInfo struct {
	Algorithm string `json:"algorithm"`
	KeyLength int    `json:"key_length"`
	KeyHash   string `json:"key_hash"`
}

// Info returns a diagnostic-safe description of the current key.
func (m *Manager) Info() KeyInfo {
	h := Hash(m.key)
	truncated := h
	if len(truncated) > 16 {
		truncated = truncated[:16] + "..."
	}
	return KeyInfo{
		Algorithm: "AES-256-GCM",
		KeyLength: len(m.key) * 8,
		KeyHash:   truncated,
	}
}
