package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pushchain/gorc/orchestrator/keys"
)

var (
	errEntryNotFound    = errors.New("keystore entry not found")
	errDecryptionFailed = errors.New("decryption failed")
)

const (
	keyFileExt = ".key"
	filePerms  = 0o600 // Read/write for owner only
	dirPerms   = 0o700 // Read/write/execute for owner only

	// Encryption constants
	saltLength       = 32
	nonceLength      = 12 // GCM nonce length
	keyLength        = 32 // AES-256 key length
	pbkdf2Iterations = 100000
)

// fileStore keeps one passphrase-encrypted file per key in a single directory.
type fileStore struct {
	dir        string
	passphrase string
}

// openFileStore opens the directory at dir, creating it if needed.
func openFileStore(dir string, passphrase string) (*fileStore, error) {
	if dir == "" {
		return nil, errors.New("keystore directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat keystore directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("keystore path %s is not a directory", dir)
	}
	return &fileStore{dir: dir, passphrase: passphrase}, nil
}

// looseMode returns the directory mode when group or others have any access to it.
func (s *fileStore) looseMode() (os.FileMode, bool) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return 0, false
	}
	perm := info.Mode().Perm()
	return perm, perm&0o077 != 0
}

func (s *fileStore) path(name keys.KeyName) string {
	return filepath.Join(s.dir, name.String()+keyFileExt)
}

// get reads and decrypts the entry for name.
func (s *fileStore) get(name keys.KeyName) ([]byte, error) {
	encryptedData, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errEntryNotFound
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	plaintext, err := s.decrypt(encryptedData)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// exists checks if an entry file exists for name.
func (s *fileStore) exists(name keys.KeyName) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check key file: %w", err)
	}
	return true, nil
}

// put encrypts data and replaces the entry for name atomically.
// It reports whether an entry already existed.
func (s *fileStore) put(name keys.KeyName, data []byte) (bool, error) {
	replaced, err := s.exists(name)
	if err != nil {
		return false, err
	}

	encryptedData, err := s.encrypt(data)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt key: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name.String()+"-*")
	if err != nil {
		return false, fmt.Errorf("failed to create temporary key file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(encryptedData); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Chmod(filePerms); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("failed to set key file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("failed to sync key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to close key file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return false, fmt.Errorf("failed to install key file: %w", err)
	}
	return replaced, nil
}

// remove deletes the entry for name.
func (s *fileStore) remove(name keys.KeyName) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return errEntryNotFound
		}
		return fmt.Errorf("failed to remove key file: %w", err)
	}
	return nil
}

// list returns the names of all entries, sorted. Files that do not map to a
// valid key name are ignored.
func (s *fileStore) list() ([]keys.KeyName, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory: %w", err)
	}

	names := make([]keys.KeyName, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), keyFileExt) {
			continue
		}
		name, err := keys.NewKeyName(strings.TrimSuffix(entry.Name(), keyFileExt))
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names, nil
}

// encrypt encrypts data using AES-256-GCM with a passphrase-derived key.
// Returns encrypted data in format: [salt(32) || nonce(12) || ciphertext || tag(16)]
func (s *fileStore) encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("key data cannot be empty")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)

	encrypted := make([]byte, 0, saltLength+len(ciphertext))
	encrypted = append(encrypted, salt...)
	encrypted = append(encrypted, ciphertext...)
	return encrypted, nil
}

// decrypt decrypts data produced by encrypt. A wrong passphrase and a damaged
// file both yield errDecryptionFailed.
func (s *fileStore) decrypt(encryptedData []byte) ([]byte, error) {
	if len(encryptedData) < saltLength+nonceLength {
		return nil, errDecryptionFailed
	}

	salt := encryptedData[:saltLength]
	ciphertext := encryptedData[saltLength:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[:nonceLength]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceLength:], nil)
	if err != nil {
		return nil, errDecryptionFailed
	}
	return plaintext, nil
}

func (s *fileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
