// Package pipeline drives runs through research, generation, publish and
// promotion, persisting the run after every stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/wordpress"
)

const defaultRunTimeout = 30 * time.Minute

// Researcher produces ranked topic candidates for a blog.
type Researcher interface {
	ResearchTopics(ctx context.Context, blog *models.Blog) ([]models.TopicCandidate, error)
}

// Generator writes a draft for a topic.
type Generator interface {
	GenerateContent(ctx context.Context, blog *models.Blog, topic models.TopicCandidate) (*models.ContentDraft, error)
}

// Publisher creates or updates the WordPress post for a draft.
type Publisher interface {
	Publish(ctx context.Context, blog *models.Blog, draft *models.ContentDraft, previous *models.PublishResult) (*models.PublishResult, error)
}

// Promoter announces a published post.
type Promoter interface {
	Promote(ctx context.Context, blog *models.Blog, draft *models.ContentDraft, published *models.PublishResult) (*models.PromotionResult, error)
}

// Store persists runs and reads blogs.
type Store interface {
	GetBlog(ctx context.Context, id int64) (*models.Blog, error)
	CreateRun(ctx context.Context, blogID int64, trigger string) (*models.Run, error)
	GetRun(ctx context.Context, blogID int64, runID string) (*models.Run, error)
	AdvanceRun(ctx context.Context, blogID int64, runID string, to models.RunStatus, patch models.RunPatch) (*models.Run, error)
	FailRun(ctx context.Context, blogID int64, runID, stage, message string) (*models.Run, error)
	UpdateRunContent(ctx context.Context, blogID int64, runID string, draft *models.ContentDraft) (*models.Run, error)
	RecordRepublish(ctx context.Context, blogID int64, runID string, result *models.PublishResult) error
}

// Orchestrator executes runs. Runs of the same blog are serialized; runs of
// different blogs proceed concurrently.
type Orchestrator struct {
	store      Store
	researcher Researcher
	generator  Generator
	publisher  Publisher
	promoter   Promoter

	locks      *keyedMutex
	runTimeout time.Duration
	wg         sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunTimeout bounds how long a background run may take.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

// New creates an orchestrator from its stages.
func New(store Store, researcher Researcher, generator Generator, publisher Publisher, promoter Promoter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		researcher: researcher,
		generator:  generator,
		publisher:  publisher,
		promoter:   promoter,
		locks:      newKeyedMutex(),
		runTimeout: defaultRunTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExecuteRun creates a run for blog and drives it to a terminal state. The
// returned run is the persisted record, including when a stage failed;
// the error is only non-nil when the run could not be stored.
func (o *Orchestrator) ExecuteRun(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error) {
	run, err := o.store.CreateRun(ctx, blog.ID, trigger)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, blog, run)
}

// TriggerAsync creates a run and executes it in the background with its own
// timeout, returning the new run as soon as it is stored.
func (o *Orchestrator) TriggerAsync(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error) {
	run, err := o.store.CreateRun(ctx, blog.ID, trigger)
	if err != nil {
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
		defer cancel()
		if _, err := o.execute(runCtx, blog, run); err != nil {
			slog.Error("background run failed", "blog_id", blog.ID, "run_id", run.ID, "error", err)
		}
	}()
	return run, nil
}

// Wait blocks until every background run has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) execute(ctx context.Context, blog *models.Blog, run *models.Run) (result *models.Run, err error) {
	unlock := o.locks.Lock(blog.ID)
	defer unlock()

	log := slog.With("blog_id", blog.ID, "run_id", run.ID)
	log.Info("run started", "trigger", run.Trigger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = o.fail(ctx, run, &StageError{Stage: currentStage(run), Kind: KindInternal, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	topics, err := o.researcher.ResearchTopics(ctx, blog)
	if err == nil && len(topics) == 0 {
		err = errors.New("no topic candidates found")
	}
	if err != nil {
		return o.fail(ctx, run, stageError(StageResearch, err))
	}
	if run, err = o.advance(ctx, run, models.RunResearched, models.RunPatch{Topics: topics}); err != nil || run.Status == models.RunFailed {
		return run, err
	}

	draft, err := o.generator.GenerateContent(ctx, blog, topics[0])
	if err != nil {
		return o.fail(ctx, run, stageError(StageGeneration, err))
	}
	if run, err = o.advance(ctx, run, models.RunContentGenerated, models.RunPatch{Content: draft}); err != nil || run.Status == models.RunFailed {
		return run, err
	}

	if !blog.WordPress.Connected() {
		log.Info("run completed without publishing: wordpress not connected")
		return o.advance(ctx, run, models.RunCompleted, models.RunPatch{})
	}

	published, err := o.publisher.Publish(ctx, blog, draft, nil)
	if err != nil {
		return o.fail(ctx, run, stageError(StagePublish, err))
	}
	if run, err = o.advance(ctx, run, models.RunPublished, models.RunPatch{Publish: published}); err != nil || run.Status == models.RunFailed {
		return run, err
	}

	promotion, err := o.promoter.Promote(ctx, blog, draft, published)
	if err != nil {
		return o.fail(ctx, run, stageError(StagePromotion, err))
	}
	if run, err = o.advance(ctx, run, promotion.Status.RunStatus(), models.RunPatch{Promotion: promotion}); err != nil {
		return nil, err
	}

	log.Info("run finished", "status", run.Status, "duration", time.Since(start).Round(time.Millisecond))
	return run, nil
}

// advance records a completed stage. Like fail, it writes under a context
// detached from ctx so a deadline hit during a stage cannot strand the run
// mid-pipeline. When the write itself fails the run is closed out as
// failed; an error is returned only if that also fails.
func (o *Orchestrator) advance(ctx context.Context, run *models.Run, to models.RunStatus, patch models.RunPatch) (*models.Run, error) {
	ctx = context.WithoutCancel(ctx)
	updated, err := o.store.AdvanceRun(ctx, run.BlogID, run.ID, to, patch)
	if err == nil {
		return updated, nil
	}

	err = fmt.Errorf("recording run %s as %s: %w", run.ID, to, err)
	failed, failErr := o.fail(ctx, run, &StageError{Stage: recordedStage(run, to), Kind: KindInternal, Err: err})
	if failErr != nil {
		return nil, errors.Join(err, failErr)
	}
	return failed, nil
}

// recordedStage names the stage whose output advancing run to `to` records.
func recordedStage(run *models.Run, to models.RunStatus) string {
	if run.Status == models.RunContentGenerated && to == models.RunCompleted {
		return StageGeneration
	}
	return currentStage(run)
}

// fail records a stage failure. The store write uses a context detached
// from ctx so a timed-out run is still closed out.
func (o *Orchestrator) fail(ctx context.Context, run *models.Run, stageErr *StageError) (*models.Run, error) {
	slog.Error("run failed",
		"blog_id", run.BlogID, "run_id", run.ID,
		"stage", stageErr.Stage, "kind", stageErr.Kind, "error", stageErr.Err)

	failed, err := o.store.FailRun(context.WithoutCancel(ctx), run.BlogID, run.ID, stageErr.Stage, stageErr.Error())
	if err != nil {
		return nil, fmt.Errorf("recording failure of run %s: %w", run.ID, err)
	}
	return failed, nil
}

// currentStage names the stage that runs next from run's status.
func currentStage(run *models.Run) string {
	switch run.Status {
	case models.RunResearched:
		return StageGeneration
	case models.RunContentGenerated:
		return StagePublish
	case models.RunPublished:
		return StagePromotion
	}
	return StageResearch
}

// Republish replaces a run's generated content with edited and, when
// republish is set and the run already has a WordPress post, updates that
// post in place. A failed update leaves the edited content stored and the
// run status unchanged.
func (o *Orchestrator) Republish(ctx context.Context, blogID int64, runID string, edited *models.ContentDraft, republish bool) (*models.Run, error) {
	blog, err := o.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(blogID)
	defer unlock()

	run, err := o.store.UpdateRunContent(ctx, blogID, runID, edited)
	if err != nil {
		return nil, err
	}
	if !republish || run.Publish == nil || run.Publish.PostID == 0 {
		return run, nil
	}
	if !blog.WordPress.Connected() {
		return nil, wordpress.ErrNotConnected
	}

	published, err := o.publisher.Publish(ctx, blog, edited, run.Publish)
	if err != nil {
		return nil, stageError(StagePublish, err)
	}
	if err := o.store.RecordRepublish(ctx, blogID, runID, published); err != nil {
		return nil, err
	}
	slog.Info("run republished", "blog_id", blogID, "run_id", runID, "post_id", published.PostID)

	run.Publish = published
	return run, nil
}
