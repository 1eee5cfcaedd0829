package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/quill/internal/ai"
	"github.com/hoanghai1803/quill/internal/models"
)

// imagePlan is one image to generate.
type imagePlan struct {
	section  string
	featured bool
	variant  int
}

// planImages decides which images a draft gets. The featured image always
// comes first. In section mode every heading gets one image, up to five;
// otherwise count (clamped to 1..5) images are made, attached to headings
// in order while headings last.
func planImages(settings models.ImageSettings, sections []string) []imagePlan {
	plans := []imagePlan{{featured: true}}

	if settings.SectionImages {
		for i, sec := range sections {
			if i == maxSectionImages {
				break
			}
			plans = append(plans, imagePlan{section: sec})
		}
		return plans
	}

	count := min(max(settings.Count, 1), models.MaxImages)
	for i := 1; i < count; i++ {
		if i-1 < len(sections) {
			plans = append(plans, imagePlan{section: sections[i-1]})
		} else {
			plans = append(plans, imagePlan{variant: i})
		}
	}
	return plans
}

// generateImages produces the planned images. Each one reserves its cost
// first, so an exhausted budget stops generation before the call is made.
func (s *Stage) generateImages(ctx context.Context, settings models.ImageSettings, draft *models.ContentDraft) ([]models.GeneratedImage, error) {
	if s.images == nil {
		return nil, ErrNoImageProvider
	}

	plans := planImages(settings, draft.Sections)
	images := make([]models.GeneratedImage, 0, len(plans))
	for _, p := range plans {
		prompt := ai.ImagePrompt(draft.Title, p.section, settings.Style)
		if p.variant > 0 {
			prompt += fmt.Sprintf(" Alternative composition %d.", p.variant)
		}

		if err := s.guard.CheckAndReserve(ctx, imageKind, s.imageCost); err != nil {
			return nil, fmt.Errorf("reserving image budget: %w", err)
		}
		img, err := s.images.GenerateImage(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("generating image: %w", err)
		}

		alt := draft.Title
		if p.section != "" {
			alt = p.section
		}
		images = append(images, models.GeneratedImage{
			Prompt:   prompt,
			AltText:  alt,
			Section:  p.section,
			Featured: p.featured,
			URL:      img.URL,
			Data:     img.Data,
		})
	}

	slog.Debug("images generated", "count", len(images), "section_mode", settings.SectionImages)
	return images, nil
}
