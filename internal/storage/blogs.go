package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/quill/internal/models"
)

const blogColumns = `id, name, theme, description, keywords, frequency, style, wordpress,
		images, social, competitors, is_active, created_at, updated_at`

// CreateBlog validates and inserts a new blog, returning its ID. The blog's
// ID and timestamps are filled in on success.
func (s *Store) CreateBlog(ctx context.Context, blog *models.Blog) (int64, error) {
	if err := blog.Validate(); err != nil {
		return 0, err
	}
	blog.Keywords = blog.NormalizedKeywords()

	cols, err := encodeBlogColumns(blog)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO blogs (name, theme, description, keywords, frequency, style, wordpress,
			images, social, competitors, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		blog.Name, blog.Theme, nullableString(blog.Description), cols.keywords,
		string(blog.Frequency), cols.style, cols.wordpress, cols.images, cols.social,
		cols.competitors, boolToInt(blog.IsActive), formatTime(now), formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("creating blog: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting blog id: %w", err)
	}
	blog.ID = id
	blog.CreatedAt = now
	blog.UpdatedAt = now
	return id, nil
}

// GetBlog returns the blog with the given ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetBlog(ctx context.Context, id int64) (*models.Blog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id)

	blog, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting blog %d: %w", id, err)
	}
	return blog, nil
}

// ListBlogs returns blogs ordered by name. When activeOnly is set, blogs
// with is_active = 0 are left out.
func (s *Store) ListBlogs(ctx context.Context, activeOnly bool) ([]models.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying blogs: %w", err)
	}
	defer rows.Close()

	blogs := []models.Blog{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning blog row: %w", err)
		}
		blogs = append(blogs, *blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blog rows: %w", err)
	}
	return blogs, nil
}

// UpdateBlog rewrites every editable field of an existing blog.
// It returns ErrNotFound if no blog matches blog.ID.
func (s *Store) UpdateBlog(ctx context.Context, blog *models.Blog) error {
	if err := blog.Validate(); err != nil {
		return err
	}
	blog.Keywords = blog.NormalizedKeywords()

	cols, err := encodeBlogColumns(blog)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE blogs SET
			name = ?, theme = ?, description = ?, keywords = ?, frequency = ?,
			style = ?, wordpress = ?, images = ?, social = ?, competitors = ?,
			is_active = ?, updated_at = ?
		 WHERE id = ?`,
		blog.Name, blog.Theme, nullableString(blog.Description), cols.keywords,
		string(blog.Frequency), cols.style, cols.wordpress, cols.images, cols.social,
		cols.competitors, boolToInt(blog.IsActive), formatTime(now), blog.ID,
	)
	if err != nil {
		return fmt.Errorf("updating blog %d: %w", blog.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	blog.UpdatedAt = now
	return nil
}

// SetBlogActive sets the is_active flag. Blogs are deactivated, never
// deleted, so their run history stays intact.
func (s *Store) SetBlogActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blogs SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("setting blog %d active=%v: %w", id, active, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// blogJSONColumns holds the JSON-encoded nested settings of a blog row.
type blogJSONColumns struct {
	keywords    string
	style       string
	wordpress   string
	images      string
	social      string
	competitors string
}

func encodeBlogColumns(blog *models.Blog) (blogJSONColumns, error) {
	var (
		cols blogJSONColumns
		err  error
	)
	if cols.keywords, err = marshalString(nonNil(blog.Keywords)); err != nil {
		return cols, fmt.Errorf("encoding keywords: %w", err)
	}
	if cols.style, err = marshalString(blog.Style); err != nil {
		return cols, fmt.Errorf("encoding style: %w", err)
	}
	if cols.wordpress, err = marshalString(blog.WordPress); err != nil {
		return cols, fmt.Errorf("encoding wordpress target: %w", err)
	}
	if cols.images, err = marshalString(blog.Images); err != nil {
		return cols, fmt.Errorf("encoding image settings: %w", err)
	}
	if cols.social, err = marshalString(blog.Social); err != nil {
		return cols, fmt.Errorf("encoding social settings: %w", err)
	}
	if cols.competitors, err = marshalString(nonNil(blog.Competitors)); err != nil {
		return cols, fmt.Errorf("encoding competitors: %w", err)
	}
	return cols, nil
}

// scanner is a minimal interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanBlog scans a single blog row into a models.Blog.
func scanBlog(row scanner) (*models.Blog, error) {
	var (
		blog        models.Blog
		description sql.NullString
		frequency   string
		cols        blogJSONColumns
		isActive    int
		createdAt   string
		updatedAt   string
	)

	if err := row.Scan(
		&blog.ID, &blog.Name, &blog.Theme, &description, &cols.keywords, &frequency,
		&cols.style, &cols.wordpress, &cols.images, &cols.social, &cols.competitors,
		&isActive, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	blog.Description = description.String
	blog.Frequency = models.Frequency(frequency)
	blog.IsActive = isActive == 1
	blog.CreatedAt = parseTime(createdAt)
	blog.UpdatedAt = parseTime(updatedAt)

	for _, f := range []struct {
		raw  string
		dest any
	}{
		{cols.keywords, &blog.Keywords},
		{cols.style, &blog.Style},
		{cols.wordpress, &blog.WordPress},
		{cols.images, &blog.Images},
		{cols.social, &blog.Social},
		{cols.competitors, &blog.Competitors},
	} {
		if err := unmarshalString(f.raw, f.dest); err != nil {
			return nil, fmt.Errorf("decoding blog %d settings: %w", blog.ID, err)
		}
	}

	return &blog, nil
}

// marshalString JSON-encodes v into a string suitable for a TEXT column.
func marshalString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalString decodes a TEXT column into dest. Empty input is a no-op.
func unmarshalString(raw string, dest any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// nonNil returns an empty slice in place of nil so it encodes as [].
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nullableString converts an empty string to nil for nullable TEXT columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
