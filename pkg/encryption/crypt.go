package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	formatVersion = 1
	saltSize      = 16
	keySize       = chacha20poly1305.KeySize
	// version | time | memory | threads | salt | nonce
	headerSize = 1 + 4 + 4 + 1 + saltSize + chacha20poly1305.NonceSizeX
)

var (
	// ErrDecrypt is returned for a wrong passphrase or tampered ciphertext.
	ErrDecrypt = errors.New("decryption failed")
	// ErrUnsupportedFormat is returned for data not produced by Encrypt.
	ErrUnsupportedFormat = errors.New("unsupported ciphertext format")
)

// EncryptionManagerInterface defines encryption and decryption methods.
type EncryptionManagerInterface interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// KDFParams are the argon2id cost parameters.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultKDFParams follow the argon2id recommendation of RFC 9106 for
// memory-constrained hosts.
var DefaultKDFParams = KDFParams{Time: 3, MemoryKiB: 64 * 1024, Threads: 4}

// EncryptionManager seals data with XChaCha20-Poly1305 under a key derived
// from a passphrase. Every Encrypt draws a fresh salt and nonce; the cost
// parameters travel in the authenticated header so they can change later.
type EncryptionManager struct {
	passphrase []byte
	params     KDFParams
}

// NewEncryptionManager creates a new EncryptionManager instance.
func NewEncryptionManager(passphrase string, params KDFParams) (*EncryptionManager, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("invalid KDF parameters %+v", params)
	}
	return &EncryptionManager{passphrase: []byte(passphrase), params: params}, nil
}

// Encrypt encrypts plaintext. The result is the header followed by the sealed data.
func (a *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	header := make([]byte, headerSize)
	header[0] = formatVersion
	binary.BigEndian.PutUint32(header[1:5], a.params.Time)
	binary.BigEndian.PutUint32(header[5:9], a.params.MemoryKiB)
	header[9] = a.params.Threads

	salt := header[10 : 10+saltSize]
	nonce := header[10+saltSize:]
	if _, err := rand.Read(header[10:]); err != nil {
		return nil, fmt.Errorf("failed to generate salt and nonce: %w", err)
	}

	aead, err := a.cipher(salt, a.params)
	if err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, header)
	return append(header, sealed...), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (a *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < headerSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrUnsupportedFormat)
	}
	if ciphertext[0] != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, ciphertext[0])
	}

	header := ciphertext[:headerSize]
	params := KDFParams{
		Time:      binary.BigEndian.Uint32(header[1:5]),
		MemoryKiB: binary.BigEndian.Uint32(header[5:9]),
		Threads:   header[9],
	}
	if params.Time == 0 || params.MemoryKiB == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("%w: invalid KDF parameters", ErrUnsupportedFormat)
	}
	salt := header[10 : 10+saltSize]
	nonce := header[10+saltSize:]

	aead, err := a.cipher(salt, params)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext[headerSize:], header)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func (a *EncryptionManager) cipher(salt []byte, params KDFParams) (cipher.AEAD, error) {
	key := argon2.IDKey(a.passphrase, salt, params.Time, params.MemoryKiB, params.Threads, keySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305: %w", err)
	}
	return aead, nil
}
