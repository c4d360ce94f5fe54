package external

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultStateTTL bounds how long a handshake may sit between the redirect
// and the provider callback.
const DefaultStateTTL = 10 * time.Minute

// StateManager round-trips OAuthState through the provider's opaque state
// parameter.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState is the payload carried through the state parameter: which
// provider the handshake belongs to, the PKCE verifier for the callback leg,
// and where to land afterwards. Nonce and expiry make every token unique
// and short-lived.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// EncryptedStateManager seals state with AES-GCM and authenticates the
// envelope with HMAC-SHA256, so the party carrying it through the redirect
// can neither read nor forge it.
type EncryptedStateManager struct {
	aead    cipher.AEAD
	hmacKey []byte
	ttl     time.Duration
}

// NewEncryptedStateManager builds a state manager from a 16, 24 or 32 byte
// encryption key and an HMAC key. A non-positive ttl selects the default.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) (*EncryptedStateManager, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid state encryption key")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not build state cipher")
	}

	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	return &EncryptedStateManager{
		aead:    aead,
		hmacKey: hmacKey,
		ttl:     ttl,
	}, nil
}

// Encode stamps nonce and expiry, seals the state and signs the envelope.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := time.Now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		nonce, err := randomToken(16)
		if err != nil {
			return "", err
		}
		state.Nonce = nonce
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "could not marshal oauth state")
	}

	sealed, err := sm.seal(payload)
	if err != nil {
		return "", err
	}

	envelope := append(sm.sign(sealed), sealed...)

	return base64.URLEncoding.EncodeToString(envelope), nil
}

// Decode verifies the envelope signature, opens the state and checks expiry.
// Anything that does not round-trip cleanly is ErrInvalidState; the only
// other failure is ErrStateExpired.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(data) < sha256.Size {
		return nil, ErrInvalidState
	}

	signature, sealed := data[:sha256.Size], data[sha256.Size:]
	if !hmac.Equal(signature, sm.sign(sealed)) {
		return nil, ErrInvalidState
	}

	payload, err := sm.open(sealed)
	if err != nil {
		return nil, ErrInvalidState
	}

	state := &OAuthState{}
	if err := json.Unmarshal(payload, state); err != nil {
		return nil, ErrInvalidState
	}

	if time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	return state, nil
}

func (sm *EncryptedStateManager) seal(payload []byte) ([]byte, error) {
	nonce := make([]byte, sm.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not generate cipher nonce")
	}
	return sm.aead.Seal(nonce, nonce, payload, nil), nil
}

func (sm *EncryptedStateManager) open(sealed []byte) ([]byte, error) {
	size := sm.aead.NonceSize()
	if len(sealed) < size {
		return nil, ErrInvalidState
	}
	return sm.aead.Open(nil, sealed[:size], sealed[size:], nil)
}

func (sm *EncryptedStateManager) sign(sealed []byte) []byte {
	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(sealed)
	return mac.Sum(nil)
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "could not read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeVerifier() (string, error) {
	return randomToken(32)
}

func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
