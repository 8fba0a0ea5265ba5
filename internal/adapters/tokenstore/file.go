package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/squarelink-cli/internal/domain"
	"github.com/bnema/squarelink-cli/internal/ports"
)

const (
	// SlotName is the single named slot holding the credential.
	SlotName = "auth_token"

	storeDirMode  = 0o700
	tokenFileMode = 0o600
	tempPattern   = ".auth_token-*.tmp"
)

// FileStore keeps the credential in one file under root.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

var _ ports.TokenStore = (*FileStore)(nil)

func NewFileStore(root string) *FileStore {
	return &FileStore{path: filepath.Join(filepath.Clean(root), SlotName)}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrCredentialAbsent
		}
		return "", fmt.Errorf("read token file: %w", err)
	}

	credential := domain.Credential(strings.TrimSpace(string(data)))
	if credential.Empty() {
		return "", domain.ErrCredentialAbsent
	}

	return credential, nil
}

func (s *FileStore) Set(ctx context.Context, credential domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.WriteString(credential.String()); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tempFile.Chmod(tokenFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp token file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	cleanup = false

	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete token file: %w", err)
	}

	return nil
}
