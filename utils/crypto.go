package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Cipher holds the keys derived from DATA_ENCRYPTION_KEY.
//
// Encrypt/Decrypt use a random nonce and protect secrets at rest.
// EncryptID/DecryptID use a nonce derived from the plaintext, so the same id
// always yields the same shareable token, and only a holder of the key can
// reverse it.
type Cipher struct {
	secrets cipher.AEAD
	ids     cipher.AEAD
	idMAC   []byte
}

func NewCipher(key string) (*Cipher, error) {
	if len(key) != 32 {
		return nil, errors.New("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}

	secretsKey, err := deriveKey(key, "horizon/secrets")
	if err != nil {
		return nil, err
	}
	idsKey, err := deriveKey(key, "horizon/shareable-id")
	if err != nil {
		return nil, err
	}
	idMAC, err := deriveKey(key, "horizon/shareable-id-nonce")
	if err != nil {
		return nil, err
	}

	secrets, err := newGCM(secretsKey)
	if err != nil {
		return nil, err
	}
	ids, err := newGCM(idsKey)
	if err != nil {
		return nil, err
	}

	return &Cipher{secrets: secrets, ids: ids, idMAC: idMAC}, nil
}

func deriveKey(master, info string) ([]byte, error) {
	out := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(master), nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts plaintext and returns a base64 encoded ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.secrets.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := c.secrets.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt takes a base64 encoded ciphertext and returns the original bytes.
func (c *Cipher) Decrypt(cryptoText string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return nil, err
	}
	return open(c.secrets, ciphertext)
}

// EncryptID returns the shareable form of an external account id.
func (c *Cipher) EncryptID(id string) string {
	mac := hmac.New(sha256.New, c.idMAC)
	mac.Write([]byte(id))
	nonce := mac.Sum(nil)[:c.ids.NonceSize()]

	ciphertext := c.ids.Seal(nonce, nonce, []byte(id), nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext)
}

// DecryptID reverses EncryptID. Tampered or foreign tokens fail
// authentication.
func (c *Cipher) DecryptID(shareableID string) (string, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(shareableID)
	if err != nil {
		return "", err
	}
	plaintext, err := open(c.ids, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func open(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return aead.Open(nil, nonce, ciphertext, nil)
}
