package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// StateTTL is the freshness window for an encoded OAuth state. A captured
// redirect URL can only be replayed within this window; the one-time nature
// of authorization codes bounds it further.
const StateTTL = 10 * time.Minute

const stateTagSize = 16

// OAuthState binds an OAuth redirect to the tenant, project, and provider
// that initiated it. It exists only inside the encoded redirect parameter
// and is never persisted.
type OAuthState struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
	Provider  string `json:"provider"`
	IssuedAt  int64  `json:"issued_at"` // epoch millis
}

// Distinct decode failures. Callers map all of them to the same "try
// connecting again" UX but they must stay distinguishable in logs and tests.
var (
	ErrStateTooShort = errors.New("oauth state: encoded value too short")
	ErrStateInvalid  = errors.New("oauth state: authentication failed")
	ErrStateExpired  = errors.New("oauth state: expired")
)

// StateCodec encodes OAuthState into a tamper-proof, URL-safe token and
// back. AES-256-GCM under a keyring-derived key replaces server-side
// session storage: the state is self-contained and verifiable.
type StateCodec struct {
	aead cipher.AEAD
}

func NewStateCodec(keyring *Keyring) (*StateCodec, error) {
	key, err := keyring.StateKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("state codec: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("state codec: gcm: %w", err)
	}
	return &StateCodec{aead: aead}, nil
}

// NewState builds an OAuthState stamped with the current time.
func NewState(tenantID, projectID, provider string) OAuthState {
	return OAuthState{
		TenantID:  tenantID,
		ProjectID: projectID,
		Provider:  provider,
		IssuedAt:  time.Now().UnixMilli(),
	}
}

// Encode seals the state with a fresh random nonce and returns
// base64url(nonce || ciphertext+tag), safe for a URL query parameter.
// Encoding the same state twice yields different tokens.
func (c *StateCodec) Encode(s OAuthState) (string, error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("state codec: marshal: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("state codec: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Any single-bit tamper fails authentication; a
// valid token older than StateTTL fails with ErrStateExpired. Inputs
// shorter than nonce+tag+1 byte fail fast without attempting decryption.
func (c *StateCodec) Decode(token string) (*OAuthState, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", ErrStateInvalid)
	}

	minLen := c.aead.NonceSize() + stateTagSize + 1
	if len(data) < minLen {
		return nil, ErrStateTooShort
	}

	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrStateInvalid
	}

	var s OAuthState
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return nil, fmt.Errorf("%w: bad payload", ErrStateInvalid)
	}

	if time.Since(time.UnixMilli(s.IssuedAt)) > StateTTL {
		return nil, ErrStateExpired
	}

	return &s, nil
}
