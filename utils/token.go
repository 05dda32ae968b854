package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const SessionSecretBytes = 32

// GenerateSessionSecret returns a random secret for the client and the hash
// that is stored server-side.
func GenerateSessionSecret() (secret, hash string, err error) {
	buf := make([]byte, SessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, HashToken(secret), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
