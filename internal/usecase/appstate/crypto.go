package appstate

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"

	"agentdesk/internal/domain"
)

// Token-at-rest format: hex(salt) | hex(nonce) | hex(ciphertext), with the
// key derived from the passphrase via argon2id. Salt and nonce are fresh per
// write, so the same token never encrypts to the same blob twice.
const (
	saltLen = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func encryptToken(token, passphrase string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ct := gcm.Seal(nil, nonce, []byte(token), nil)
	return hex.EncodeToString(salt) + "|" + hex.EncodeToString(nonce) + "|" + hex.EncodeToString(ct), nil
}

func decryptToken(blob, passphrase string) (string, error) {
	parts := strings.Split(blob, "|")
	if len(parts) != 3 {
		return "", domain.ErrStateDecrypt
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) != saltLen {
		return "", domain.ErrStateDecrypt
	}
	nonce, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", domain.ErrStateDecrypt
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", domain.ErrStateDecrypt
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", domain.ErrStateDecrypt
	}
	pt, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", domain.ErrStateDecrypt
	}
	return string(pt), nil
}
