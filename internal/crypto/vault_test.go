package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/edvin/integrations/internal/model"
)

func testKeyring(t *testing.T, version int) *Keyring {
	t.Helper()
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	k, err := NewKeyring(base64.StdEncoding.EncodeToString(raw), version)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	return k
}

func TestVaultRoundTrip(t *testing.T) {
	v := NewVault(testKeyring(t, 1))

	plaintext := []byte("super-secret-value-123")
	env, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if env.KeyVersion != 1 {
		t.Fatalf("expected key version 1, got %d", env.KeyVersion)
	}

	decrypted, err := v.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Fatalf("round-trip failed: got %q, want %q", decrypted, plaintext)
	}
}

func TestVaultPayloadRoundTrip(t *testing.T) {
	v := NewVault(testKeyring(t, 1))

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	payload := &model.TokenPayload{
		AccessToken:  "gho_abc123",
		RefreshToken: "ghr_def456",
		TokenType:    "bearer",
		Scope:        "repo read:user",
		AccountLabel: "octocat",
		ExpiresAt:    &expires,
	}

	env, err := v.EncryptPayload(payload)
	if err != nil {
		t.Fatalf("EncryptPayload: %v", err)
	}

	got, err := v.DecryptPayload(env)
	if err != nil {
		t.Fatalf("DecryptPayload: %v", err)
	}
	if got.AccessToken != payload.AccessToken || got.RefreshToken != payload.RefreshToken {
		t.Fatalf("payload mismatch: got %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expires mismatch: got %v, want %v", got.ExpiresAt, expires)
	}
}

func TestVaultWrongKeyRejected(t *testing.T) {
	v1 := NewVault(testKeyring(t, 1))
	v2 := NewVault(testKeyring(t, 1))

	env, err := v1.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = v2.Decrypt(env)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestVaultTamperedCiphertextRejected(t *testing.T) {
	v := NewVault(testKeyring(t, 1))

	env, err := v.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.Ciphertext[len(env.Ciphertext)-1] ^= 0xff

	_, err = v.Decrypt(env)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed for tampered ciphertext, got %v", err)
	}
}

func TestVaultKeyVersionRotation(t *testing.T) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	master := base64.StdEncoding.EncodeToString(raw)

	k1, err := NewKeyring(master, 1)
	if err != nil {
		t.Fatalf("NewKeyring v1: %v", err)
	}
	env, err := NewVault(k1).Encrypt([]byte("rotate-me"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// After bumping the current version, old envelopes still decrypt.
	k2, err := NewKeyring(master, 2)
	if err != nil {
		t.Fatalf("NewKeyring v2: %v", err)
	}
	v2 := NewVault(k2)

	decrypted, err := v2.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt v1 envelope under v2 keyring: %v", err)
	}
	if string(decrypted) != "rotate-me" {
		t.Fatalf("got %q", decrypted)
	}

	env2, err := v2.Encrypt([]byte("fresh"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if env2.KeyVersion != 2 {
		t.Fatalf("expected new ciphertext under version 2, got %d", env2.KeyVersion)
	}
}

func TestVaultDistinctVersionsDistinctKeys(t *testing.T) {
	k := testKeyring(t, 2)

	key1, err := k.VaultKey(1)
	if err != nil {
		t.Fatalf("VaultKey(1): %v", err)
	}
	key2, err := k.VaultKey(2)
	if err != nil {
		t.Fatalf("VaultKey(2): %v", err)
	}
	if bytes.Equal(key1, key2) {
		t.Fatal("expected different keys for different versions")
	}
}

func TestVaultDifferentCiphertextsForSamePlaintext(t *testing.T) {
	v := NewVault(testKeyring(t, 1))
	plaintext := []byte("same-value")

	env1, _ := v.Encrypt(plaintext)
	env2, _ := v.Encrypt(plaintext)

	if bytes.Equal(env1.Nonce, env2.Nonce) {
		t.Fatal("expected different nonces")
	}
	if bytes.Equal(env1.Ciphertext, env2.Ciphertext) {
		t.Fatal("expected different ciphertexts due to random nonce")
	}
}

func TestNewKeyringRejectsBadInput(t *testing.T) {
	if _, err := NewKeyring("", 1); err == nil {
		t.Fatal("expected error for empty master key")
	}
	if _, err := NewKeyring("not-base64!!", 1); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewKeyring(short, 1); err == nil {
		t.Fatal("expected error for short master key")
	}
	good := base64.StdEncoding.EncodeToString(make([]byte, 32))
	if _, err := NewKeyring(good, 0); err == nil {
		t.Fatal("expected error for version 0")
	}
}
