package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hoanghai1803/quill/internal/models"
)

// GlobalConfig is the blog ID used for documents shared by every blog.
const GlobalConfig int64 = 0

var configNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ErrInvalidConfigName is returned for document names outside [a-z0-9_-]{1,64}.
var ErrInvalidConfigName = errors.New("invalid configuration document name")

// DocumentVersion returns the version hash of a stored document body.
func DocumentVersion(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetConfigDocument returns the named document for a blog.
// Returns nil, ErrNotFound if it has never been written.
func (s *Store) GetConfigDocument(ctx context.Context, blogID int64, name string) (*models.ConfigDocument, error) {
	return getConfigDocument(ctx, s.db, blogID, name)
}

// PutConfigDocument stores content under name if expectedVersion matches the
// version currently stored. An empty expectedVersion is accepted only when
// the document does not exist yet. Content that is not valid JSON is
// rejected with ErrInvalidJSON, a stale version with ErrVersionConflict;
// in both cases the stored document is unchanged.
func (s *Store) PutConfigDocument(ctx context.Context, blogID int64, name string, content []byte, expectedVersion string) (*models.ConfigDocument, error) {
	if !configNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidConfigName, name)
	}
	if !json.Valid(content) {
		return nil, ErrInvalidJSON
	}

	// Compact so that the version does not depend on client formatting.
	var buf bytes.Buffer
	if err := json.Compact(&buf, content); err != nil {
		return nil, ErrInvalidJSON
	}
	stored := buf.Bytes()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	current, err := getConfigDocument(ctx, tx, blogID, name)
	switch {
	case errors.Is(err, ErrNotFound):
		if expectedVersion != "" {
			return nil, fmt.Errorf("%w: document %q does not exist", ErrVersionConflict, name)
		}
	case err != nil:
		return nil, err
	case current.Version != expectedVersion:
		return nil, fmt.Errorf("%w: document %q is at version %s", ErrVersionConflict, name, current.Version)
	}

	doc := &models.ConfigDocument{
		BlogID:    blogID,
		Name:      name,
		Content:   json.RawMessage(stored),
		Version:   DocumentVersion(stored),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO config_documents (blog_id, name, content, version, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(blog_id, name) DO UPDATE SET
			content = excluded.content,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		blogID, name, string(stored), doc.Version, formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("writing config document %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing config document %q: %w", name, err)
	}
	return doc, nil
}

// LoadConfigInto decodes the named document into dest. A blog without its
// own document falls back to the shared one stored under GlobalConfig. It
// reports false, with dest untouched, when neither exists.
func (s *Store) LoadConfigInto(ctx context.Context, blogID int64, name string, dest any) (bool, error) {
	doc, err := s.GetConfigDocument(ctx, blogID, name)
	if errors.Is(err, ErrNotFound) && blogID != GlobalConfig {
		doc, err = s.GetConfigDocument(ctx, GlobalConfig, name)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(doc.Content, dest); err != nil {
		return false, fmt.Errorf("decoding config document %q: %w", name, err)
	}
	return true, nil
}

func getConfigDocument(ctx context.Context, q queryer, blogID int64, name string) (*models.ConfigDocument, error) {
	var (
		doc       models.ConfigDocument
		content   string
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT blog_id, name, content, version, updated_at
		 FROM config_documents WHERE blog_id = ? AND name = ?`,
		blogID, name,
	).Scan(&doc.BlogID, &doc.Name, &content, &doc.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting config document %q: %w", name, err)
	}
	doc.Content = json.RawMessage(content)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}
