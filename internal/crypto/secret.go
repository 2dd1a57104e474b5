/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package crypto implements the AEAD envelope used for cluster passwords
// at rest: AES-128-GCM, ciphertext = base64(nonce(12 bytes) ||
// ciphertext_and_tag). crypto/aes + crypto/cipher is the correct,
// idiomatic tool for a fixed wire format like this one (see DESIGN.md).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

const nonceSize = 12

// SecretBox encrypts and decrypts cluster passwords with a single AES-128
// key. It is constructed once per process from a 32-hex-character (16
// byte) key read from the environment.
type SecretBox struct {
	gcm cipher.AEAD
}

// NewSecretBox builds a SecretBox from a 32-hex-character key.
func NewSecretBox(hexKey string) (*SecretBox, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "invalid encryption key encoding")
	}
	if len(key) != 16 {
		return nil, apperrors.New(apperrors.ErrorTypeInternal, "encryption key must decode to 16 bytes (AES-128)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to construct AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to construct GCM mode")
	}
	return &SecretBox{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext_and_tag) for plaintext.
func (s *SecretBox) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to generate nonce")
	}
	sealed := s.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt returns an error if ciphertext is malformed or the tag does not
// verify; there is no silent fallback.
func (s *SecretBox) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "malformed ciphertext encoding")
	}
	if len(raw) < nonceSize {
		return "", apperrors.New(apperrors.ErrorTypeInternal, "ciphertext shorter than nonce")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decrypt secret")
	}
	return string(plaintext), nil
}
