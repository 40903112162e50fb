package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeySize   = 32
	sealNonceSize = 24
)

var ErrSealedValueInvalid = errors.New("sealed value cannot be opened")

// Sealer encrypts short secrets (session tokens) before they are written to
// local storage. Output is base64(nonce || secretbox).
type Sealer struct {
	key [sealKeySize]byte
}

// NewSealer takes a hex encoded 32 byte key.
func NewSealer(hexKey string) (*Sealer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	if len(raw) != sealKeySize {
		return nil, fmt.Errorf("session key: want %d bytes, got %d", sealKeySize, len(raw))
	}
	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < sealNonceSize+secretbox.Overhead {
		return "", ErrSealedValueInvalid
	}
	var nonce [sealNonceSize]byte
	copy(nonce[:], raw[:sealNonceSize])
	plain, ok := secretbox.Open(nil, raw[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrSealedValueInvalid
	}
	return string(plain), nil
}
