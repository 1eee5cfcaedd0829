// Package wordpress publishes drafts to a WordPress site through its REST
// API using application-password basic auth.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4096
	restPrefix     = "/wp-json/wp/v2"
)

// APIError is a non-2xx response from WordPress. Message carries the text
// WordPress returned, unmodified.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress: HTTP %d: %s", e.StatusCode, e.Message)
}

// Auth reports whether WordPress rejected the credentials.
func (e *APIError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client talks to one WordPress site.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewClient creates a client for siteURL. httpClient may be nil.
func NewClient(siteURL, username, appPassword string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		username: username,
		password: appPassword,
		http:     httpClient,
	}
}

// Post is the writable subset of a WordPress post.
type Post struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Excerpt       string  `json:"excerpt,omitempty"`
	Status        string  `json:"status"`
	Slug          string  `json:"slug,omitempty"`
	Categories    []int64 `json:"categories,omitempty"`
	Tags          []int64 `json:"tags,omitempty"`
	FeaturedMedia int64   `json:"featured_media,omitempty"`
}

// PostResponse is the part of a created or updated post we keep.
type PostResponse struct {
	ID     int64  `json:"id"`
	Link   string `json:"link"`
	Status string `json:"status"`
	Slug   string `json:"slug"`
}

// Media is an uploaded attachment.
type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// Term is a category or tag.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CreatePost creates a new post.
func (c *Client) CreatePost(ctx context.Context, p Post) (*PostResponse, error) {
	var out PostResponse
	if err := c.doJSON(ctx, http.MethodPost, "/posts", p, &out); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return &out, nil
}

// UpdatePost replaces the fields of an existing post.
func (c *Client) UpdatePost(ctx context.Context, id int64, p Post) (*PostResponse, error) {
	var out PostResponse
	if err := c.doJSON(ctx, http.MethodPost, "/posts/"+strconv.FormatInt(id, 10), p, &out); err != nil {
		return nil, fmt.Errorf("updating post %d: %w", id, err)
	}
	return &out, nil
}

// UploadMedia uploads a file to the media library and sets its alt text.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, data []byte, altText string) (*Media, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing multipart body: %w", err)
	}
	if altText != "" {
		if err := mw.WriteField("alt_text", altText); err != nil {
			return nil, fmt.Errorf("writing alt text: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/media", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out Media
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("uploading media %q: %w", filename, err)
	}
	return &out, nil
}

// ResolveTerms returns the ids of the named categories or tags, creating
// those that do not exist. taxonomy is "categories" or "tags". Names are
// matched case-insensitively.
func (c *Client) ResolveTerms(ctx context.Context, taxonomy string, names []string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := c.resolveTerm(ctx, taxonomy, name)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) resolveTerm(ctx context.Context, taxonomy, name string) (int64, error) {
	var found []Term
	path := "/" + taxonomy + "?per_page=100&search=" + url.QueryEscape(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &found); err != nil {
		return 0, fmt.Errorf("searching %s for %q: %w", taxonomy, name, err)
	}
	for _, t := range found {
		if strings.EqualFold(t.Name, name) {
			return t.ID, nil
		}
	}

	var created Term
	err := c.doJSON(ctx, http.MethodPost, "/"+taxonomy, map[string]string{"name": name}, &created)
	if err == nil {
		return created.ID, nil
	}
	// Another writer may have created it between search and create.
	if id, ok := existingTermID(err); ok {
		return id, nil
	}
	return 0, fmt.Errorf("creating %s %q: %w", taxonomy, name, err)
}

// termExists is returned by WordPress when creating a duplicate term.
type termExists struct {
	apiErr *APIError
	termID int64
}

func (e *termExists) Error() string { return e.apiErr.Error() }
func (e *termExists) Unwrap() error { return e.apiErr }

func existingTermID(err error) (int64, bool) {
	var te *termExists
	if !errors.As(err, &te) {
		return 0, false
	}
	return te.termID, te.termID > 0
}

// Ping verifies the credentials by reading the authenticated user.
func (c *Client) Ping(ctx context.Context) error {
	var me struct {
		ID int64 `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/me?context=edit", nil, &me); err != nil {
		return fmt.Errorf("checking credentials: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+restPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError turns a WordPress error body ({"code","message","data"})
// into an APIError, keeping the raw body when it is not JSON.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var wpErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Data    struct {
			TermID int64 `json:"term_id"`
		} `json:"data"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	if json.Unmarshal(raw, &wpErr) == nil && wpErr.Message != "" {
		apiErr.Code = wpErr.Code
		apiErr.Message = wpErr.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if wpErr.Code == "term_exists" {
		return &termExists{apiErr: apiErr, termID: wpErr.Data.TermID}
	}
	return apiErr
}
