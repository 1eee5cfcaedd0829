package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/hoanghai1803/quill/internal/models"
)

func TestCreateRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	run, err := store.CreateRun(ctx, blog.ID, "")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	if run.Status != models.RunStarted {
		t.Errorf("Status = %q, want started", run.Status)
	}
	if run.Trigger != "manual" {
		t.Errorf("Trigger = %q, want manual", run.Trigger)
	}

	got, err := store.GetRun(ctx, blog.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.ID != run.ID || got.Status != models.RunStarted {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", got.FinishedAt)
	}
}

func TestGetRun_ScopedToBlog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := seedTestBlog(t, store, "A")
	b := seedTestBlog(t, store, "B")

	run, err := store.CreateRun(ctx, a.ID, "manual")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	if _, err := store.GetRun(ctx, b.ID, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRun() with other blog error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.CreateRun(ctx, blog.ID, "schedule")
		if err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, blog.ID, 10)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns() returned %d runs, want 3", len(runs))
	}
	for i, run := range runs {
		if want := ids[len(ids)-1-i]; run.ID != want {
			t.Errorf("runs[%d].ID = %s, want %s", i, run.ID, want)
		}
	}

	recent, err := store.ListRecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecentRuns() error: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != ids[2] {
		t.Errorf("ListRecentRuns(2) = %d runs, first %v", len(recent), recent)
	}
}

func TestAdvanceRun_FullPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	run, err := store.CreateRun(ctx, blog.ID, "manual")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	topics := []models.TopicCandidate{{Keyword: "espresso", Title: "Espresso at home", Score: 0.9, Source: models.SourceTrend}}
	if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunResearched, models.RunPatch{Topics: topics}); err != nil {
		t.Fatalf("AdvanceRun(researched) error: %v", err)
	}

	draft := &models.ContentDraft{Title: "Espresso at home", Body: "# Hi"}
	if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunContentGenerated, models.RunPatch{Content: draft}); err != nil {
		t.Fatalf("AdvanceRun(content-generated) error: %v", err)
	}

	pub := &models.PublishResult{PostID: 12, PostURL: "https://brew.example.com/espresso"}
	if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunPublished, models.RunPatch{Publish: pub}); err != nil {
		t.Fatalf("AdvanceRun(published) error: %v", err)
	}

	promo := &models.PromotionResult{Status: models.PromotionPartial, Platforms: []models.PlatformResult{
		{Platform: "twitter", Success: true, PostID: "1"},
		{Platform: "devto", Error: "401 unauthorized"},
	}}
	final, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunPartial, models.RunPatch{Promotion: promo})
	if err != nil {
		t.Fatalf("AdvanceRun(partial) error: %v", err)
	}
	if final.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal status")
	}

	got, err := store.GetRun(ctx, blog.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != models.RunPartial {
		t.Errorf("Status = %q, want partial", got.Status)
	}
	if len(got.Topics) != 1 || got.Topics[0].Keyword != "espresso" {
		t.Errorf("Topics = %+v", got.Topics)
	}
	if got.Content == nil || got.Content.Title != "Espresso at home" {
		t.Errorf("Content = %+v", got.Content)
	}
	if got.Publish == nil || got.Publish.PostID != 12 {
		t.Errorf("Publish = %+v", got.Publish)
	}
	if got.Promotion == nil || len(got.Promotion.Platforms) != 2 {
		t.Errorf("Promotion = %+v", got.Promotion)
	}
	if got.FinishedAt == nil {
		t.Error("stored FinishedAt is nil")
	}
}

func TestAdvanceRun_RejectsIllegalEdges(t *testing.T) {
	tests := []struct {
		name string
		path []models.RunStatus
		next models.RunStatus
	}{
		{"skip research", nil, models.RunContentGenerated},
		{"publish before content", []models.RunStatus{models.RunResearched}, models.RunPublished},
		{"backwards", []models.RunStatus{models.RunResearched, models.RunContentGenerated}, models.RunResearched},
		{"out of terminal", []models.RunStatus{models.RunResearched, models.RunContentGenerated, models.RunCompleted}, models.RunPublished},
		{"failed via advance", nil, models.RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			ctx := context.Background()
			blog := seedTestBlog(t, store, "Brew Notes")
			run, err := store.CreateRun(ctx, blog.ID, "manual")
			if err != nil {
				t.Fatalf("CreateRun() error: %v", err)
			}
			for _, s := range tt.path {
				if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, s, models.RunPatch{}); err != nil {
					t.Fatalf("AdvanceRun(%s) error: %v", s, err)
				}
			}

			before, _ := store.GetRun(ctx, blog.ID, run.ID)
			_, err = store.AdvanceRun(ctx, blog.ID, run.ID, tt.next, models.RunPatch{})
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("AdvanceRun(%s) error = %v, want ErrInvalidTransition", tt.next, err)
			}
			after, _ := store.GetRun(ctx, blog.ID, run.ID)
			if before.Status != after.Status {
				t.Errorf("status changed from %q to %q on rejected transition", before.Status, after.Status)
			}
		})
	}
}

func TestFailRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	run, err := store.CreateRun(ctx, blog.ID, "manual")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	topics := []models.TopicCandidate{{Keyword: "espresso", Score: 1}}
	if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunResearched, models.RunPatch{Topics: topics}); err != nil {
		t.Fatalf("AdvanceRun() error: %v", err)
	}

	if _, err := store.FailRun(ctx, blog.ID, run.ID, "generation", "   "); err == nil {
		t.Fatal("FailRun() with blank message succeeded, want error")
	}

	failed, err := store.FailRun(ctx, blog.ID, run.ID, "generation", "budget exhausted")
	if err != nil {
		t.Fatalf("FailRun() error: %v", err)
	}
	if failed.Status != models.RunFailed {
		t.Errorf("Status = %q, want failed", failed.Status)
	}

	got, err := store.GetRun(ctx, blog.ID, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Error != "budget exhausted" || got.FailedStage != "generation" {
		t.Errorf("Error = %q, FailedStage = %q", got.Error, got.FailedStage)
	}
	if len(got.Topics) != 1 {
		t.Errorf("research output lost on failure: %+v", got.Topics)
	}
	if got.Content != nil {
		t.Errorf("Content = %+v, want nil", got.Content)
	}

	if _, err := store.FailRun(ctx, blog.ID, run.ID, "generation", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("FailRun() on failed run error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateRunContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	run, err := store.CreateRun(ctx, blog.ID, "manual")
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	edited := &models.ContentDraft{Title: "Edited"}
	if _, err := store.UpdateRunContent(ctx, blog.ID, run.ID, edited); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("UpdateRunContent() without content error = %v, want ErrInvalidTransition", err)
	}

	for _, s := range []models.RunStatus{models.RunResearched, models.RunContentGenerated} {
		patch := models.RunPatch{}
		if s == models.RunContentGenerated {
			patch.Content = &models.ContentDraft{Title: "Original"}
		}
		if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, s, patch); err != nil {
			t.Fatalf("AdvanceRun(%s) error: %v", s, err)
		}
	}
	if _, err := store.AdvanceRun(ctx, blog.ID, run.ID, models.RunCompleted, models.RunPatch{}); err != nil {
		t.Fatalf("AdvanceRun(completed) error: %v", err)
	}

	updated, err := store.UpdateRunContent(ctx, blog.ID, run.ID, edited)
	if err != nil {
		t.Fatalf("UpdateRunContent() error: %v", err)
	}
	if updated.Status != models.RunCompleted {
		t.Errorf("Status = %q, want completed (unchanged)", updated.Status)
	}

	got, _ := store.GetRun(ctx, blog.ID, run.ID)
	if got.Content == nil || got.Content.Title != "Edited" {
		t.Errorf("Content = %+v, want title Edited", got.Content)
	}

	if err := store.RecordRepublish(ctx, blog.ID, run.ID, &models.PublishResult{PostID: 5}); err != nil {
		t.Fatalf("RecordRepublish() error: %v", err)
	}
	got, _ = store.GetRun(ctx, blog.ID, run.ID)
	if got.Publish == nil || got.Publish.PostID != 5 || got.Status != models.RunCompleted {
		t.Errorf("after RecordRepublish: status=%q publish=%+v", got.Status, got.Publish)
	}
}

func TestFailStaleRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	blog := seedTestBlog(t, store, "Brew Notes")

	stale, _ := store.CreateRun(ctx, blog.ID, "schedule")
	done, _ := store.CreateRun(ctx, blog.ID, "manual")
	if _, err := store.FailRun(ctx, blog.ID, done.ID, "research", "unreachable"); err != nil {
		t.Fatalf("FailRun() error: %v", err)
	}

	n, err := store.FailStaleRuns(ctx, "interrupted")
	if err != nil {
		t.Fatalf("FailStaleRuns() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("FailStaleRuns() = %d, want 1", n)
	}

	got, _ := store.GetRun(ctx, blog.ID, stale.ID)
	if got.Status != models.RunFailed || got.Error != "interrupted" {
		t.Errorf("stale run = status %q error %q", got.Status, got.Error)
	}
	got, _ = store.GetRun(ctx, blog.ID, done.ID)
	if got.Error != "unreachable" {
		t.Errorf("already-failed run error overwritten: %q", got.Error)
	}
}
