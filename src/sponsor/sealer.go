package sponsor

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

const (
	sealedVersionSize = 4
	sealKeySize       = 32
)

// Encrypts the private payload of a token
type Sealer interface {
	// Returns the sealed payload and the key needed to open it
	Seal(payload []byte) (sealed []byte, key []byte, err error)
}

// AES-256-GCM with a fresh key per payload. Layout: 4 byte version (0), 12 byte nonce, ciphertext.
type AesSealer struct{}

func (AesSealer) Seal(payload []byte) (sealed []byte, key []byte, err error) {
	key = make([]byte, sealKeySize)
	_, err = rand.Read(key)
	if err != nil {
		return
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return
	}

	sealed = make([]byte, sealedVersionSize+gcm.NonceSize(), sealedVersionSize+gcm.NonceSize()+len(payload)+gcm.Overhead())
	nonce := sealed[sealedVersionSize:]
	_, err = rand.Read(nonce)
	if err != nil {
		return nil, nil, err
	}

	sealed = gcm.Seal(sealed, nonce, payload, nil)
	return sealed, key, nil
}

// Inverse of AesSealer.Seal
func OpenSealed(sealed []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < sealedVersionSize+gcm.NonceSize() {
		return nil, errors.New("sealed payload too short")
	}
	nonce := sealed[sealedVersionSize : sealedVersionSize+gcm.NonceSize()]
	return gcm.Open(nil, nonce, sealed[sealedVersionSize+gcm.NonceSize():], nil)
}
