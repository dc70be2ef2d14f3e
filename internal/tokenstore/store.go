// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokenstore persists the bearer token between runs.
//
// The token lives in a single 0600 file under the config directory. When a
// passphrase is configured the file holds "ENC:" followed by
// base64(salt | nonce | ciphertext), sealed with AES-256-GCM under a
// PBKDF2-SHA-256 key. Writes are atomic so a crash never leaves half a token.
package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/safechat-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks an encrypted token file.
const EncryptedPrefix = "ENC:"

const (
	// NonceSize is the AES-GCM nonce size (96 bits)
	NonceSize = 12

	// KeySize is the AES-256 key size
	KeySize = 32

	// SaltSize is the PBKDF2 salt size
	SaltSize = 16

	// DefaultIterations is the PBKDF2-SHA-256 work factor.
	DefaultIterations = 600000
)

var (
	// ErrPassphraseRequired is returned when an encrypted token is read without a passphrase.
	ErrPassphraseRequired = errors.New("token file is encrypted: passphrase required")

	// ErrDecryptionFailed indicates a wrong passphrase or a tampered file.
	ErrDecryptionFailed = errors.New("token decryption failed")

	// ErrInvalidFormat indicates an unreadable encrypted payload.
	ErrInvalidFormat = errors.New("invalid encrypted token format")
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the token in a file. It is safe for concurrent use.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
	iterations int
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithPassphrase encrypts the token at rest.
func WithPassphrase(passphrase string) Option {
	return func(s *FileStore) {
		s.passphrase = passphrase
	}
}

// WithIterations overrides the PBKDF2 work factor.
func WithIterations(n int) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.iterations = n
		}
	}
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{path: path, iterations: DefaultIterations}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the token file path.
func (s *FileStore) Path() string {
	return s.path
}

// Encrypted reports whether new tokens are written encrypted.
func (s *FileStore) Encrypted() bool {
	return s.passphrase != ""
}

// Load returns the persisted token, or "" when none is stored.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	if s.passphrase == "" {
		return "", ErrPassphraseRequired
	}
	return s.open(strings.TrimPrefix(value, EncryptedPrefix))
}

// Save persists token. An empty token clears the store.
func (s *FileStore) Save(token string) error {
	if token == "" {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value := token
	if s.passphrase != "" {
		sealed, err := s.seal(token)
		if err != nil {
			return err
		}
		value = EncryptedPrefix + sealed
	}

	// SECURITY: Token file is owner read/write only
	if err := util.AtomicWriteFile(s.path, []byte(value+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the persisted token.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// =============================================================================
// ENCRYPTION
// =============================================================================

func (s *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.passphrase), salt, s.iterations, KeySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (s *FileStore) seal(token string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, SaltSize+NonceSize+len(token)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *FileStore) open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(data) < SaltSize+NonceSize {
		return "", ErrInvalidFormat
	}

	salt := data[:SaltSize]
	nonce := data[SaltSize : SaltSize+NonceSize]
	ciphertext := data[SaltSize+NonceSize:]

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	defer zeroBytes(plaintext)
	return string(plaintext), nil
}

// zeroBytes clears key material.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the token in memory. Useful for tests and --no-persist runs.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	err   error
}

// NewMemoryStore creates a store holding token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// FailWith makes Load return err.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Load returns the stored token.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.err
}

// Save stores token.
func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear forgets the token.
func (m *MemoryStore) Clear() error {
	return m.Save("")
}
