package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/edvin/integrations/internal/model"
)

// ErrDecryptionFailed is returned for any tamper, wrong-key, or
// unknown-key-version condition on stored ciphertext. Callers treat it as a
// data-integrity incident: log loudly, never crash the batch.
var ErrDecryptionFailed = errors.New("vault: decryption failed")

// Envelope is the encrypted form of a token payload as persisted on the
// credential row.
type Envelope struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVersion int
}

// Vault encrypts and decrypts credential token payloads with AES-256-GCM
// using keys derived from the process keyring. Each record gets a fresh
// random nonce; the key version travels with the ciphertext.
type Vault struct {
	keyring *Keyring
}

func NewVault(keyring *Keyring) *Vault {
	return &Vault{keyring: keyring}
}

// Encrypt seals plaintext under the keyring's current vault key.
func (v *Vault) Encrypt(plaintext []byte) (*Envelope, error) {
	version := v.keyring.CurrentVersion()
	aead, err := v.aead(version)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	return &Envelope{
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
		Nonce:      nonce,
		KeyVersion: version,
	}, nil
}

// Decrypt opens an envelope with the key version recorded on it.
func (v *Vault) Decrypt(env *Envelope) ([]byte, error) {
	aead, err := v.aead(env.KeyVersion)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrDecryptionFailed, len(env.Nonce))
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptPayload serializes and seals a token payload.
func (v *Vault) EncryptPayload(p *model.TokenPayload) (*Envelope, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("vault: marshal payload: %w", err)
	}
	return v.Encrypt(plaintext)
}

// DecryptPayload opens an envelope and deserializes the token payload.
func (v *Vault) DecryptPayload(env *Envelope) (*model.TokenPayload, error) {
	plaintext, err := v.Decrypt(env)
	if err != nil {
		return nil, err
	}
	var p model.TokenPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("%w: bad payload encoding", ErrDecryptionFailed)
	}
	return &p, nil
}

func (v *Vault) aead(version int) (cipher.AEAD, error) {
	key, err := v.keyring.VaultKey(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
