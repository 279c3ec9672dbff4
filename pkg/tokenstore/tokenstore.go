package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/benmeehan/whoo-agent/pkg/encryption"
	"github.com/benmeehan/whoo-agent/pkg/file"
)

// TokenStoreInterface defines methods to persist the service access token.
type TokenStoreInterface interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// tokenData is the plaintext sealed into the token file.
type tokenData struct {
	AccessToken string    `json:"access_token"`
	Account     string    `json:"account,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// TokenStore keeps one encrypted access token on disk. The token is bound to
// the account it was issued for, so switching accounts ignores the cache.
type TokenStore struct {
	TokenFilePath     string
	Account           string
	FileOps           file.FileOperations
	EncryptionManager encryption.EncryptionManagerInterface
	now               func() time.Time
}

// NewTokenStore initializes a new TokenStore instance.
func NewTokenStore(tokenFilePath, account string, fileOps file.FileOperations, encryptionManager encryption.EncryptionManagerInterface) *TokenStore {
	return &TokenStore{
		TokenFilePath:     tokenFilePath,
		Account:           account,
		FileOps:           fileOps,
		EncryptionManager: encryptionManager,
		now:               time.Now,
	}
}

// Load returns the cached token, or "" when there is none for this account.
func (s *TokenStore) Load() (string, error) {
	data, err := s.FileOps.ReadFileRaw(s.TokenFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	decrypted, err := s.EncryptionManager.Decrypt(data)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token file: %w", err)
	}

	var tokens tokenData
	if err := json.Unmarshal(decrypted, &tokens); err != nil {
		return "", fmt.Errorf("failed to parse token data: %w", err)
	}

	if tokens.Account != s.Account {
		return "", nil
	}
	return tokens.AccessToken, nil
}

// Save encrypts and writes token, replacing any previous one.
func (s *TokenStore) Save(token string) error {
	if token == "" {
		return errors.New("refusing to cache an empty token")
	}

	data, err := json.Marshal(tokenData{AccessToken: token, Account: s.Account, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to serialize token data: %w", err)
	}

	encrypted, err := s.EncryptionManager.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt token data: %w", err)
	}

	return s.FileOps.WriteFileRaw(s.TokenFilePath, encrypted)
}

// Clear removes the token file.
func (s *TokenStore) Clear() error {
	return s.FileOps.RemoveFile(s.TokenFilePath)
}
