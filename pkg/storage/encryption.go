package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/wattwise/wattwise/pkg/log"
)

// Encrypted wraps a Database so values are sealed with AES-256-GCM before
// they are written. Keys and session ids are stored as is.
type Encrypted struct {
	Database
	gcm cipher.AEAD
}

// NewEncrypted returns db with value encryption. key must be 32 bytes.
func NewEncrypted(db Database, key string) (*Encrypted, error) {
	if len(key) != 32 {
		return nil, errors.New("invalid encryption key length (must be 32 bytes)")
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Encrypted{
		Database: db,
		gcm:      gcm,
	}, nil
}

// GetValue returns the decrypted value. A value that cannot be decrypted,
// for instance after the key changed, is reported as ErrNotFound so the
// session simply has to log in again.
func (e *Encrypted) GetValue(ctx context.Context, sessionID, key string) (string, error) {
	sealed, err := e.Database.GetValue(ctx, sessionID, key)
	if err != nil {
		return "", err
	}
	plain, err := e.open(sealed)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decrypt stored value", slog.String("key", key), slog.Any("error", err))
		return "", ErrNotFound
	}
	return plain, nil
}

// SetValue encrypts value and stores it.
func (e *Encrypted) SetValue(ctx context.Context, sessionID, key, value string) error {
	sealed, err := e.seal(value)
	if err != nil {
		return err
	}
	return e.Database.SetValue(ctx, sessionID, key, sealed)
}

func (e *Encrypted) seal(value string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(e.gcm.Seal(nonce, nonce, []byte(value), nil)), nil
}

func (e *Encrypted) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("malformed encrypted value: %w", err)
	}
	if len(raw) < e.gcm.NonceSize() {
		return "", errors.New("malformed encrypted value")
	}
	nonce, ciphertext := raw[:e.gcm.NonceSize()], raw[e.gcm.NonceSize():]
	plain, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}
