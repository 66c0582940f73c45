package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const masterKeyLength = 32

// Keyring derives purpose-bound AES-256 keys from a single master secret
// via HKDF-SHA256. Vault keys are additionally tagged with a version so the
// derivation can rotate without a flag day: records written under an older
// version stay decryptable.
//
// All derived keys are computed at construction time and read-only after,
// so the Keyring is safe for concurrent use.
type Keyring struct {
	master  []byte
	current int
}

// NewKeyring decodes the base64 master secret and validates its length.
// currentVersion selects the vault derivation used for new ciphertexts.
func NewKeyring(masterKeyBase64 string, currentVersion int) (*Keyring, error) {
	if masterKeyBase64 == "" {
		return nil, fmt.Errorf("master key secret is not set")
	}
	master, err := base64.StdEncoding.DecodeString(masterKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(master) != masterKeyLength {
		return nil, fmt.Errorf("master key must decode to %d bytes, got %d", masterKeyLength, len(master))
	}
	if currentVersion < 1 {
		return nil, fmt.Errorf("key version must be >= 1, got %d", currentVersion)
	}
	return &Keyring{master: master, current: currentVersion}, nil
}

// CurrentVersion returns the vault key version used for new ciphertexts.
func (k *Keyring) CurrentVersion() int {
	return k.current
}

// VaultKey derives the 32-byte vault key for the given version.
func (k *Keyring) VaultKey(version int) ([]byte, error) {
	if version < 1 {
		return nil, fmt.Errorf("invalid key version %d", version)
	}
	return k.derive("credential-vault", fmt.Sprintf("vault-key-v%d", version))
}

// StateKey derives the 32-byte key for the OAuth state codec. The purpose
// and info labels differ from the vault's, so state-token keys are
// cryptographically independent of every vault key.
func (k *Keyring) StateKey() ([]byte, error) {
	return k.derive("oauth-state", "state-encoding-key-v1")
}

func (k *Keyring) derive(purpose, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, k.master, []byte(purpose), []byte(info))
	key := make([]byte, masterKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}
