package wordpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/hoanghai1803/quill/internal/models"
)

// ErrNotConnected is returned when a blog lacks any of the WordPress URL,
// username or application password.
var ErrNotConnected = errors.New("wordpress is not connected for this blog")

// ConfigLoader reads a blog's JSON configuration documents.
type ConfigLoader interface {
	LoadConfigInto(ctx context.Context, blogID int64, name string, dest any) (bool, error)
}

// Publisher is the publish stage of a run.
type Publisher struct {
	configs    ConfigLoader
	httpClient *http.Client
	now        func() time.Time
}

// NewPublisher creates a publisher. httpClient is used both for the REST
// API and for downloading generated images; nil uses a default client.
func NewPublisher(configs ConfigLoader, httpClient *http.Client) *Publisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Publisher{configs: configs, httpClient: httpClient, now: time.Now}
}

// Publish creates a post for draft, or updates the post in previous when
// re-publishing edited content. Images already uploaded for previous are
// reused. Any non-2xx response from WordPress fails the publish with the
// WordPress error text.
func (p *Publisher) Publish(ctx context.Context, blog *models.Blog, draft *models.ContentDraft, previous *models.PublishResult) (*models.PublishResult, error) {
	wp := blog.WordPress
	if !wp.Connected() {
		return nil, ErrNotConnected
	}
	client := NewClient(wp.URL, wp.Username, wp.AppPassword, p.httpClient)

	var ads AdSenseSettings
	if _, err := p.configs.LoadConfigInto(ctx, blog.ID, models.ConfigAdSense, &ads); err != nil {
		return nil, fmt.Errorf("loading adsense settings: %w", err)
	}

	categories := wp.Categories
	if len(categories) == 0 && strings.TrimSpace(blog.Theme) != "" {
		categories = []string{blog.Theme}
	}
	categoryIDs, err := client.ResolveTerms(ctx, "categories", categories)
	if err != nil {
		return nil, err
	}
	tagIDs, err := client.ResolveTerms(ctx, "tags", draft.Keywords)
	if err != nil {
		return nil, err
	}

	result := &models.PublishResult{
		Categories:   nonNil(categories),
		Tags:         nonNil(draft.Keywords),
		SectionMedia: make(map[string]string),
	}
	if previous != nil {
		result.FeaturedMediaID = previous.FeaturedMediaID
		for k, v := range previous.SectionMedia {
			result.SectionMedia[k] = v
		}
	}
	if err := p.uploadImages(ctx, client, draft, result); err != nil {
		return nil, err
	}

	images := make(map[string]sectionImage, len(result.SectionMedia))
	for _, img := range draft.Images {
		if u, ok := result.SectionMedia[img.Section]; ok && img.Section != "" {
			images[img.Section] = sectionImage{URL: u, Alt: img.AltText}
		}
	}
	content, adCount, err := decorateContent(draft.HTML, images, ads)
	if err != nil {
		return nil, err
	}

	status := wp.PostStatus
	if status == "" {
		status = "publish"
	}
	postSlug := draft.SEO.Slug
	if postSlug == "" {
		postSlug = slug.Make(draft.Title)
	}
	post := Post{
		Title:         draft.Title,
		Content:       content,
		Excerpt:       draft.SEO.MetaDescription,
		Status:        status,
		Slug:          postSlug,
		Categories:    categoryIDs,
		Tags:          tagIDs,
		FeaturedMedia: result.FeaturedMediaID,
	}

	var resp *PostResponse
	if previous != nil && previous.PostID > 0 {
		resp, err = client.UpdatePost(ctx, previous.PostID, post)
	} else {
		resp, err = client.CreatePost(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	result.PostID = resp.ID
	result.PostURL = resp.Link
	result.Status = resp.Status
	result.AdsInserted = adCount
	result.PublishedAt = p.now().UTC()
	if len(result.SectionMedia) == 0 {
		result.SectionMedia = nil
	}

	slog.Info("post published",
		"blog_id", blog.ID,
		"post_id", result.PostID,
		"url", result.PostURL,
		"status", result.Status,
		"updated", previous != nil && previous.PostID > 0,
		"ads", adCount,
	)
	return result, nil
}

// uploadImages uploads the featured image and section images that have not
// been uploaded before, recording their ids and URLs on result.
func (p *Publisher) uploadImages(ctx context.Context, client *Client, draft *models.ContentDraft, result *models.PublishResult) error {
	base := slug.Make(draft.Title)
	for i, img := range draft.Images {
		switch {
		case img.Featured && result.FeaturedMediaID > 0:
			continue
		case !img.Featured && (img.Section == "" || result.SectionMedia[img.Section] != ""):
			continue
		}

		data := img.Data
		if len(data) == 0 {
			if img.URL == "" {
				continue
			}
			var err error
			if data, err = downloadImage(ctx, p.httpClient, img.URL); err != nil {
				return err
			}
		}
		jpg, err := prepareImage(data)
		if err != nil {
			return err
		}

		filename := fmt.Sprintf("%s-%d.jpg", base, i+1)
		media, err := client.UploadMedia(ctx, filename, imageMediaType, jpg, img.AltText)
		if err != nil {
			return err
		}
		if img.Featured {
			result.FeaturedMediaID = media.ID
		} else {
			result.SectionMedia[img.Section] = media.SourceURL
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
