package crypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m := NewManager("correct horse battery staple", nil)
	plaintext := []byte("evidence payload")

	ciphertext, err := m.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := m.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	m := NewManager("passphrase", nil)
	ciphertext, err := m.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF
	if _, err := m.Decrypt(ciphertext); err == nil {
		t.Fatalf("expected decryption of tampered ciphertext to fail")
	}
}

func TestHMACVerify(t *testing.T) {
	m := NewManager("passphrase", nil)
	data := []byte(`{"a":1}`)
	sig := m.HMAC(data)
	if !m.VerifyHMAC(data, sig) {
		t.Fatalf("expected valid signature to verify")
	}
	if m.VerifyHMAC([]byte(`{"a":2}`), sig) {
		t.Fatalf("expected signature over different data to fail")
	}
}

func TestKeyInfoNeverExposesRawKey(t *testing.T) {
	m := NewManager("passphrase", nil)
	info := m.Info()
	if info.KeyLength != 256 {
		t.Fatalf("key length = %d, want 256", info.KeyLength)
	}
	for _, b := range m.key {
		_ = b
	}
	if len(info.KeyHash) == 0 || len(info.KeyHash) > 19 {
		t.Fatalf("key hash should be a truncated digest, got %q", info.KeyHash)
	}
}

func TestSamePassphraseSameSaltDerivesSameKey(t *testing.T) {
	a := NewManager("pw", []byte("salt"))
	b := NewManager("pw", []byte("salt"))
	data := []byte("x")
	if a.HMAC(data) != b.HMAC(data) {
		t.Fatalf("expected deterministic key derivation")
	}
}
