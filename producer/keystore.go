package producer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// Keystore seals the signer seed to disk so an enclave restart can resume
// with the same verifying key. The seed is encrypted with AES-GCM under a
// key derived from the sealing secret with Argon2id; the sealing secret
// itself comes from the platform (TEE sealing key or operator-provided).
type Keystore struct {
	path   string
	secret []byte
}

const keystoreSaltSize = 16

// NewKeystore creates a keystore writing to path, sealed under secret.
func NewKeystore(path string, secret []byte) (*Keystore, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty sealing secret")
	}
	return &Keystore{path: path, secret: secret}, nil
}

// Seal encrypts and persists the signer's seed.
func (k *Keystore) Seal(s *Signer) error {
	salt := make([]byte, keystoreSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := k.aead(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Layout: salt || nonce || ciphertext.
	sealed := append(salt, nonce...)
	sealed = aead.Seal(sealed, nonce, s.Seed(), nil)

	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(k.path, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// Load decrypts the sealed seed and reconstructs the signer. Returns
// os.ErrNotExist if no keystore has been sealed yet.
func (k *Keystore) Load() (*Signer, error) {
	sealed, err := os.ReadFile(k.path)
	if err != nil {
		return nil, err
	}

	if len(sealed) < keystoreSaltSize {
		return nil, errors.New("keystore file truncated")
	}
	salt := sealed[:keystoreSaltSize]

	aead, err := k.aead(salt)
	if err != nil {
		return nil, err
	}

	rest := sealed[keystoreSaltSize:]
	if len(rest) < aead.NonceSize() {
		return nil, errors.New("keystore file truncated")
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	seed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal keystore: %w", err)
	}
	return NewSignerFromSeed(seed)
}

// LoadOrCreate returns the sealed signer if present, generating and sealing
// a fresh one otherwise.
func (k *Keystore) LoadOrCreate() (*Signer, error) {
	signer, err := k.Load()
	if err == nil {
		return signer, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	signer, err = NewSigner()
	if err != nil {
		return nil, err
	}
	if err := k.Seal(signer); err != nil {
		return nil, err
	}
	return signer, nil
}

func (k *Keystore) aead(salt []byte) (cipher.AEAD, error) {
	// Argon2id, time=1, memory=64MB, threads=4.
	key := argon2.IDKey(k.secret, salt, 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
