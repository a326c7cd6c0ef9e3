// Package secret holds credentials encrypted at rest. A Secret only ever
// carries ciphertext; the plaintext is produced by Cipher.Open at the point a
// connection is established and is never stored on a model.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const redacted = "[REDACTED]"

// Secret is base64url(nonce|ciphertext) produced by Cipher.Seal.
type Secret struct {
	ciphertext string
}

// FromCiphertext wraps a value already sealed by a Cipher.
func FromCiphertext(ct string) Secret {
	return Secret{ciphertext: ct}
}

func (s Secret) IsZero() bool { return s.ciphertext == "" }

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

func (s Secret) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Value stores the ciphertext; NULL when empty.
func (s Secret) Value() (driver.Value, error) {
	if s.ciphertext == "" {
		return nil, nil
	}
	return s.ciphertext, nil
}

func (s *Secret) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		s.ciphertext = ""
	case string:
		s.ciphertext = v
	case []byte:
		s.ciphertext = string(v)
	default:
		return fmt.Errorf("secret: cannot scan %T", src)
	}
	return nil
}

// LoadKeyFromBase64 decodes a standard-base64 AES-256 key.
func LoadKeyFromBase64(b64 string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(k) != 32 {
		return nil, errors.New("encryption key must decode to 32 bytes")
	}
	return k, nil
}

type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Seal encrypts plaintext. An empty plaintext yields the zero Secret.
func (c *Cipher) Seal(plaintext string) (Secret, error) {
	if plaintext == "" {
		return Secret{}, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Secret{}, err
	}
	ct := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(nonce, ct...)
	return Secret{ciphertext: base64.RawURLEncoding.EncodeToString(out)}, nil
}

func (c *Cipher) Open(s Secret) (string, error) {
	if s.ciphertext == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s.ciphertext)
	if err != nil {
		return "", err
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
