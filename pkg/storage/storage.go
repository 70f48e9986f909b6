package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// ErrNotFound is returned when a session has no value for a key.
var ErrNotFound = errors.New("not found")

// Database persists small string values per browser session. It plays the
// part of the browser's local storage: each session has its own namespace of
// keys.
type Database interface {
	GetValue(ctx context.Context, sessionID, key string) (string, error)
	SetValue(ctx context.Context, sessionID, key, value string) error
	DeleteValue(ctx context.Context, sessionID, key string) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "sqlite", "Storage provider to use (available: sqlite, firestore, memory)")
	encryptionKey := lflag.String("token-encryption-key", "", "32 character key to encrypt stored tokens with. Empty stores them as is.")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "sqlite":
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
			p.Database = sq
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
		if *encryptionKey != "" {
			enc, err := NewEncrypted(p.Database, *encryptionKey)
			if err != nil {
				panic(fmt.Sprintf("token-encryption-key: %v", err))
			}
			p.Database = enc
		}
	})

	return &p
}

func validateKey(sessionID, key string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	return nil
}
