// Package scheduler triggers runs for active blogs on their publishing
// frequency.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoanghai1803/quill/internal/models"
)

// BlogStore reads the blogs to schedule.
type BlogStore interface {
	ListBlogs(ctx context.Context, activeOnly bool) ([]models.Blog, error)
	GetBlog(ctx context.Context, id int64) (*models.Blog, error)
}

// Trigger starts a run in the background.
type Trigger interface {
	TriggerAsync(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error)
}

// Scheduler owns one cron entry per active blog.
type Scheduler struct {
	blogs   BlogStore
	trigger Trigger
	hour    int
	loc     *time.Location
	now     func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
	jobs map[int64]cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a scheduler that fires at the given hour of day.
func New(blogs BlogStore, trigger Trigger, hour int, opts ...Option) *Scheduler {
	s := &Scheduler{
		blogs:   blogs,
		trigger: trigger,
		hour:    hour,
		loc:     time.UTC,
		now:     time.Now,
		jobs:    make(map[int64]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers jobs for all active blogs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	slog.Info("scheduler started", "hour", s.hour, "location", s.loc.String())
	return nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Reload rebuilds the cron table from the current set of active blogs. It
// is called after any blog is created, updated or deactivated.
func (s *Scheduler) Reload(ctx context.Context) error {
	blogs, err := s.blogs.ListBlogs(ctx, true)
	if err != nil {
		return fmt.Errorf("loading blogs to schedule: %w", err)
	}

	c := cron.New(cron.WithLocation(s.loc))
	jobs := make(map[int64]cron.EntryID, len(blogs))
	for _, blog := range blogs {
		spec, err := Spec(blog.Frequency, s.hour)
		if err != nil {
			slog.Warn("blog not scheduled", "blog_id", blog.ID, "error", err)
			continue
		}
		id, err := c.AddFunc(spec, recoveryWrapper(blog.ID, s.jobFor(blog.ID)))
		if err != nil {
			slog.Warn("blog not scheduled", "blog_id", blog.ID, "spec", spec, "error", err)
			continue
		}
		jobs[blog.ID] = id
	}

	s.mu.Lock()
	old := s.cron
	s.cron = c
	s.jobs = jobs
	c.Start()
	s.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	slog.Info("scheduler reloaded", "blogs", len(jobs))
	return nil
}

// Next returns when blog's job fires next, if it is scheduled.
func (s *Scheduler) Next(blogID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobs[blogID]
	if !ok || s.cron == nil {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) jobFor(blogID int64) func() {
	return func() {
		if _, err := s.runBlog(context.Background(), blogID); err != nil {
			slog.Error("scheduled run not started", "blog_id", blogID, "error", err)
		}
	}
}

// runBlog reloads the blog so edits since the last Reload are honoured,
// and triggers a run when it is due. It reports whether a run started.
func (s *Scheduler) runBlog(ctx context.Context, blogID int64) (bool, error) {
	blog, err := s.blogs.GetBlog(ctx, blogID)
	if err != nil {
		return false, fmt.Errorf("loading blog %d: %w", blogID, err)
	}
	if !blog.IsActive {
		return false, nil
	}
	if !Due(blog.Frequency, s.now().In(s.loc)) {
		slog.Debug("scheduled run skipped: off week", "blog_id", blogID)
		return false, nil
	}

	run, err := s.trigger.TriggerAsync(ctx, blog, "schedule")
	if err != nil {
		return false, err
	}
	slog.Info("scheduled run started", "blog_id", blogID, "run_id", run.ID)
	return true, nil
}

// Spec returns the cron expression for a publishing frequency. Biweekly
// fires weekly and is filtered by Due.
func Spec(freq models.Frequency, hour int) (string, error) {
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %d", hour)
	}
	switch freq {
	case models.FrequencyDaily:
		return fmt.Sprintf("0 %d * * *", hour), nil
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		return fmt.Sprintf("0 %d * * 1", hour), nil
	case models.FrequencyMonthly:
		return fmt.Sprintf("0 %d 1 * *", hour), nil
	}
	return "", fmt.Errorf("unknown frequency %q", freq)
}

// Due reports whether a job firing at t should start a run. Biweekly blogs
// publish on even ISO weeks only.
func Due(freq models.Frequency, t time.Time) bool {
	if freq != models.FrequencyBiweekly {
		return true
	}
	_, week := t.ISOWeek()
	return week%2 == 0
}

func recoveryWrapper(blogID int64, job func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduled job panicked", "blog_id", blogID, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		job()
	}
}
