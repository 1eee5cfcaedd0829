package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hoanghai1803/quill/internal/ai"
	"github.com/hoanghai1803/quill/internal/models"
)

type stubProvider struct {
	reply string
	err   error
	got   ai.CompletionRequest
}

func (p *stubProvider) Complete(_ context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	p.got = req
	if p.err != nil {
		return nil, p.err
	}
	return &ai.Completion{Text: p.reply, Model: "stub-model"}, nil
}

func (p *stubProvider) Model() string { return "stub-model" }

type stubImages struct {
	prompts []string
	err     error
}

func (g *stubImages) GenerateImage(_ context.Context, prompt string) (*ai.Image, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.prompts = append(g.prompts, prompt)
	return &ai.Image{URL: "https://img.example/" + string(rune('a'+len(g.prompts)-1)) + ".png"}, nil
}

// countingGuard allows the first allow reservations.
type countingGuard struct {
	allow int
	kinds []string
}

func (g *countingGuard) CheckAndReserve(_ context.Context, kind string, _ float64) error {
	if len(g.kinds) >= g.allow {
		return ai.ErrBudgetExceeded
	}
	g.kinds = append(g.kinds, kind)
	return nil
}

const articleReply = "Here you go:\n```json\n" + `{
  "title": "Dialing In Espresso at Home",
  "body_markdown": "Great espresso starts with the grind.\n\n## Choosing Beans\n\nFresh beans matter.\n\n## Grind Size\n\nGo finer for slower shots.\n\n## Tamping\n\nLevel and firm.",
  "summary": "How to pull better shots at home.",
  "keywords": ["espresso", "Espresso", " grind size ", ""],
  "meta_title": "",
  "meta_description": "Pull better espresso at home.",
  "focus_keyword": "espresso at home",
  "sections": []
}` + "\n```"

func testBlog() *models.Blog {
	return &models.Blog{
		ID:       4,
		Name:     "Home Barista",
		Theme:    "coffee",
		Keywords: []string{"espresso"},
		Style:    models.StyleSettings{Tone: "friendly", WordCount: 900},
	}
}

func TestGenerateContent(t *testing.T) {
	provider := &stubProvider{reply: articleReply}
	stage := NewStage(provider, WithMaxTokens(2000))

	draft, err := stage.GenerateContent(context.Background(), testBlog(), models.TopicCandidate{Keyword: "espresso grind", Title: "Espresso Grind"})
	if err != nil {
		t.Fatalf("GenerateContent() error: %v", err)
	}

	if provider.got.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", provider.got.MaxTokens)
	}
	for _, want := range []string{"Home Barista", "friendly", "about 900 words", "espresso grind"} {
		if !strings.Contains(provider.got.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}

	if draft.Title != "Dialing In Espresso at Home" {
		t.Errorf("Title = %q", draft.Title)
	}
	if draft.Topic != "espresso grind" {
		t.Errorf("Topic = %q", draft.Topic)
	}
	if !strings.Contains(draft.HTML, `<h2 id="choosing-beans">Choosing Beans</h2>`) {
		t.Errorf("HTML missing rendered heading: %s", draft.HTML)
	}
	wantSections := []string{"Choosing Beans", "Grind Size", "Tamping"}
	if strings.Join(draft.Sections, "|") != strings.Join(wantSections, "|") {
		t.Errorf("Sections = %v, want %v", draft.Sections, wantSections)
	}
	if strings.Join(draft.Keywords, "|") != "espresso|grind size" {
		t.Errorf("Keywords = %v", draft.Keywords)
	}
	if draft.SEO.MetaTitle != draft.Title {
		t.Errorf("MetaTitle = %q, want title fallback", draft.SEO.MetaTitle)
	}
	if draft.SEO.MetaDescription != "Pull better espresso at home." || draft.SEO.FocusKeyword != "espresso at home" {
		t.Errorf("SEO = %+v", draft.SEO)
	}
	if draft.ReadingMinutes != 1 {
		t.Errorf("ReadingMinutes = %d, want 1", draft.ReadingMinutes)
	}
	if draft.Model != "stub-model" {
		t.Errorf("Model = %q", draft.Model)
	}
	if len(draft.Images) != 0 {
		t.Errorf("Images = %d, want none when disabled", len(draft.Images))
	}
}

func TestGenerateContent_Failures(t *testing.T) {
	topic := models.TopicCandidate{Keyword: "espresso"}

	tests := []struct {
		name    string
		reply   string
		err     error
		topic   models.TopicCandidate
		wantErr error
	}{
		{"provider error", "", ai.ErrBudgetExceeded, topic, ai.ErrBudgetExceeded},
		{"not json", "I cannot help with that.", nil, topic, ErrMalformedResponse},
		{"missing body", `{"title": "x", "body_markdown": " "}`, nil, topic, ErrMalformedResponse},
		{"empty topic", articleReply, nil, models.TopicCandidate{}, ErrNoTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewStage(&stubProvider{reply: tt.reply, err: tt.err})
			draft, err := stage.GenerateContent(context.Background(), testBlog(), tt.topic)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateContent() error = %v, want %v", err, tt.wantErr)
			}
			if draft != nil {
				t.Error("GenerateContent() returned a draft alongside an error")
			}
		})
	}
}

func TestGenerateContent_Images(t *testing.T) {
	tests := []struct {
		name         string
		settings     models.ImageSettings
		wantSections []string
	}{
		{"single featured", models.ImageSettings{Enabled: true, Count: 1}, []string{""}},
		{"count zero clamps to one", models.ImageSettings{Enabled: true}, []string{""}},
		{"count follows headings", models.ImageSettings{Enabled: true, Count: 3}, []string{"", "Choosing Beans", "Grind Size"}},
		{"count beyond headings", models.ImageSettings{Enabled: true, Count: 5}, []string{"", "Choosing Beans", "Grind Size", "Tamping", ""}},
		{"count above max clamps", models.ImageSettings{Enabled: true, Count: 9}, []string{"", "Choosing Beans", "Grind Size", "Tamping", ""}},
		{"section mode", models.ImageSettings{Enabled: true, Count: 1, SectionImages: true}, []string{"", "Choosing Beans", "Grind Size", "Tamping"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blog := testBlog()
			blog.Images = tt.settings
			gen := &stubImages{}
			guard := &countingGuard{allow: 100}

			stage := NewStage(&stubProvider{reply: articleReply}, WithImages(gen, guard, 0.04))
			draft, err := stage.GenerateContent(context.Background(), blog, models.TopicCandidate{Keyword: "espresso"})
			if err != nil {
				t.Fatalf("GenerateContent() error: %v", err)
			}

			if len(draft.Images) != len(tt.wantSections) {
				t.Fatalf("got %d images, want %d", len(draft.Images), len(tt.wantSections))
			}
			for i, sec := range tt.wantSections {
				if draft.Images[i].Section != sec {
					t.Errorf("Images[%d].Section = %q, want %q", i, draft.Images[i].Section, sec)
				}
				if draft.Images[i].Featured != (i == 0) {
					t.Errorf("Images[%d].Featured = %v", i, draft.Images[i].Featured)
				}
			}
			if len(guard.kinds) != len(tt.wantSections) {
				t.Errorf("guard reservations = %d, want one per image", len(guard.kinds))
			}
			for _, k := range guard.kinds {
				if k != "image" {
					t.Errorf("reservation kind = %q, want image", k)
				}
			}
		})
	}
}

func TestPlanImages_SectionModeCap(t *testing.T) {
	sections := []string{"a", "b", "c", "d", "e", "f", "g"}
	plans := planImages(models.ImageSettings{SectionImages: true}, sections)
	if len(plans) != 1+maxSectionImages {
		t.Errorf("got %d plans, want featured plus %d sections", len(plans), maxSectionImages)
	}
}

func TestGenerateContent_ImageBudgetExhausted(t *testing.T) {
	blog := testBlog()
	blog.Images = models.ImageSettings{Enabled: true, Count: 3}
	gen := &stubImages{}

	stage := NewStage(&stubProvider{reply: articleReply}, WithImages(gen, &countingGuard{allow: 1}, 0.04))
	_, err := stage.GenerateContent(context.Background(), blog, models.TopicCandidate{Keyword: "espresso"})
	if !errors.Is(err, ai.ErrBudgetExceeded) {
		t.Fatalf("GenerateContent() error = %v, want ErrBudgetExceeded", err)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("image calls = %d, want 1 (stopped before the call over budget)", len(gen.prompts))
	}
}

func TestGenerateContent_NoImageProvider(t *testing.T) {
	blog := testBlog()
	blog.Images = models.ImageSettings{Enabled: true, Count: 1}

	_, err := NewStage(&stubProvider{reply: articleReply}).GenerateContent(context.Background(), blog, models.TopicCandidate{Keyword: "espresso"})
	if !errors.Is(err, ErrNoImageProvider) {
		t.Errorf("GenerateContent() error = %v, want ErrNoImageProvider", err)
	}
}
