package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore. Each
// session is a document in "sessions" with one sub-document per key.
type FirestoreProvider struct {
	client          *firestore.Client
	projectID       string
	database        string
	credentialsFile string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")
	credentialsFile := lflag.String("firestore-credentials-file", "", "Service account JSON file. Empty uses application default credentials.")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.credentialsFile = *credentialsFile

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is allowed and detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	var opts []option.ClientOption
	if f.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.credentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getDoc(sessionID, key string) (*firestore.DocumentRef, error) {
	if err := validateKey(sessionID, key); err != nil {
		return nil, err
	}
	return f.client.Collection("sessions").Doc(sessionID).Collection("values").Doc(key), nil
}

// GetValue implements Database.
func (f *FirestoreProvider) GetValue(ctx context.Context, sessionID, key string) (string, error) {
	ref, err := f.getDoc(sessionID, key)
	if err != nil {
		return "", err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to fetch session value: %w", err)
	}
	val, err := doc.DataAt("value")
	if err != nil {
		return "", fmt.Errorf("session document missing 'value' field: %w", err)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("session 'value' field is not a string")
	}
	return str, nil
}

// SetValue implements Database.
func (f *FirestoreProvider) SetValue(ctx context.Context, sessionID, key, value string) error {
	ref, err := f.getDoc(sessionID, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"value":   value,
		"updated": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session value: %w", err)
	}
	return nil
}

// DeleteValue implements Database. Deleting a missing key is not an error.
func (f *FirestoreProvider) DeleteValue(ctx context.Context, sessionID, key string) error {
	ref, err := f.getDoc(sessionID, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}
