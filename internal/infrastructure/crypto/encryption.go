// Package crypto encrypts customer personal data at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// EncryptionService seals short secrets such as a customer CPF. The
// associated data binds a ciphertext to its owning record, so a value copied
// onto another row fails to decrypt.
type EncryptionService interface {
	Encrypt(plaintext, associatedData string) (ciphertext, iv string, err error)
	Decrypt(ciphertext, iv, associatedData string) (plaintext string, err error)
}

type AESEncryptionService struct {
	gcm cipher.AEAD
}

func NewAESEncryptionService(hexKey string) (*AESEncryptionService, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("invalid encryption key format")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncryptionService{gcm: gcm}, nil
}

func (s *AESEncryptionService) Encrypt(plaintext, associatedData string) (string, string, error) {
	if plaintext == "" {
		return "", "", nil
	}

	iv := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", err
	}

	ciphertext := s.gcm.Seal(nil, iv, []byte(plaintext), []byte(associatedData))

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(iv),
		nil
}

func (s *AESEncryptionService) Decrypt(ciphertextB64, ivB64, associatedData string) (string, error) {
	if ciphertextB64 == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", err
	}

	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", err
	}
	if len(iv) != s.gcm.NonceSize() {
		return "", errors.New("invalid iv length")
	}

	plaintext, err := s.gcm.Open(nil, iv, ciphertext, []byte(associatedData))
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
