// Package encryption seals note content with AES-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

var ErrShortMessage = errors.New("encryption: message shorter than nonce")

// GenerateNewKey returns n random bytes. n must be 16, 24 or 32 for AES.
func GenerateNewKey(n int) ([]byte, error) {
	switch n {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption: invalid key length %d", n)
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

type Sealer struct {
	gcm cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts msg under a fresh random nonce and prepends the nonce.
func (s *Sealer) Seal(msg []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize(), s.gcm.NonceSize()+len(msg)+s.gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.gcm.Seal(nonce, nonce, msg, nil), nil
}

func (s *Sealer) Open(msg []byte) ([]byte, error) {
	size := s.gcm.NonceSize()
	if len(msg) < size {
		return nil, ErrShortMessage
	}
	return s.gcm.Open(nil, msg[:size], msg[size:], nil)
}
