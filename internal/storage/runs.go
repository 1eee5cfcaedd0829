package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hoanghai1803/quill/internal/models"
)

const runColumns = `id, blog_id, trigger, status, error, failed_stage, topics_json,
		content_json, publish_json, promotion_json, created_at, updated_at, finished_at`

// CreateRun inserts a new run for the given blog in the started state. Run
// IDs are UUIDv7 so that lexical order matches creation order.
func (s *Store) CreateRun(ctx context.Context, blogID int64, trigger string) (*models.Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	if trigger == "" {
		trigger = "manual"
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, blog_id, trigger, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), blogID, trigger, string(models.RunStarted), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("creating run for blog %d: %w", blogID, err)
	}

	return &models.Run{
		ID:        id.String(),
		BlogID:    blogID,
		Trigger:   trigger,
		Status:    models.RunStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetRun returns a single run scoped to its owning blog.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetRun(ctx context.Context, blogID int64, runID string) (*models.Run, error) {
	return getRun(ctx, s.db, blogID, runID)
}

// ListRuns returns up to limit runs for a blog, newest first.
func (s *Store) ListRuns(ctx context.Context, blogID int64, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE blog_id = ? ORDER BY id DESC LIMIT ?`,
		blogID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs for blog %d: %w", blogID, err)
	}
	return collectRuns(rows)
}

// ListRecentRuns returns up to limit runs across all blogs, newest first.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	return collectRuns(rows)
}

// AdvanceRun moves a run to status to and stores any stage output carried
// in patch. The transition is checked against the run state machine inside
// a transaction; an illegal edge returns ErrInvalidTransition and leaves
// the row unchanged. Moving to failed must go through FailRun.
func (s *Store) AdvanceRun(ctx context.Context, blogID int64, runID string, to models.RunStatus, patch models.RunPatch) (*models.Run, error) {
	if to == models.RunFailed {
		return nil, fmt.Errorf("%w: use FailRun to fail a run", ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	run, err := getRun(ctx, tx, blogID, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.Status, to)
	}

	sets := []string{"status = ?", "updated_at = ?"}
	now := time.Now().UTC().Truncate(time.Second)
	args := []any{string(to), formatTime(now)}

	if patch.Topics != nil {
		raw, err := marshalString(patch.Topics)
		if err != nil {
			return nil, fmt.Errorf("encoding topics: %w", err)
		}
		sets = append(sets, "topics_json = ?")
		args = append(args, raw)
		run.Topics = patch.Topics
	}
	if patch.Content != nil {
		raw, err := marshalString(patch.Content)
		if err != nil {
			return nil, fmt.Errorf("encoding content: %w", err)
		}
		sets = append(sets, "content_json = ?")
		args = append(args, raw)
		run.Content = patch.Content
	}
	if patch.Publish != nil {
		raw, err := marshalString(patch.Publish)
		if err != nil {
			return nil, fmt.Errorf("encoding publish result: %w", err)
		}
		sets = append(sets, "publish_json = ?")
		args = append(args, raw)
		run.Publish = patch.Publish
	}
	if patch.Promotion != nil {
		raw, err := marshalString(patch.Promotion)
		if err != nil {
			return nil, fmt.Errorf("encoding promotion result: %w", err)
		}
		sets = append(sets, "promotion_json = ?")
		args = append(args, raw)
		run.Promotion = patch.Promotion
	}
	if to.Terminal() {
		sets = append(sets, "finished_at = ?")
		args = append(args, formatTime(now))
		run.FinishedAt = &now
	}
	args = append(args, runID, blogID)

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET `+strings.Join(sets, ", ")+` WHERE id = ? AND blog_id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("advancing run %s to %s: %w", runID, to, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing run %s: %w", runID, err)
	}

	run.Status = to
	run.UpdatedAt = now
	return run, nil
}

// FailRun marks a non-terminal run as failed, recording the stage that
// failed and a human-readable message. The message must be non-empty.
// Stage outputs already stored are kept.
func (s *Store) FailRun(ctx context.Context, blogID int64, runID, stage, message string) (*models.Run, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.New("failing run: error message is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	run, err := getRun(ctx, tx, blogID, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.CanTransitionTo(models.RunFailed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, run.Status, models.RunFailed)
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, failed_stage = ?, updated_at = ?, finished_at = ?
		 WHERE id = ? AND blog_id = ?`,
		string(models.RunFailed), message, nullableString(stage), formatTime(now), formatTime(now),
		runID, blogID,
	)
	if err != nil {
		return nil, fmt.Errorf("failing run %s: %w", runID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing run %s: %w", runID, err)
	}

	run.Status = models.RunFailed
	run.Error = message
	run.FailedStage = stage
	run.UpdatedAt = now
	run.FinishedAt = &now
	return run, nil
}

// UpdateRunContent rewrites the generated content of a run without touching
// its status. It is only allowed once the run has content to edit.
func (s *Store) UpdateRunContent(ctx context.Context, blogID int64, runID string, draft *models.ContentDraft) (*models.Run, error) {
	if draft == nil {
		return nil, errors.New("updating run content: draft is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	run, err := getRun(ctx, tx, blogID, runID)
	if err != nil {
		return nil, err
	}
	if run.Content == nil {
		return nil, fmt.Errorf("%w: run %s has no generated content to edit", ErrInvalidTransition, runID)
	}

	raw, err := marshalString(draft)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET content_json = ?, updated_at = ? WHERE id = ? AND blog_id = ?`,
		raw, formatTime(now), runID, blogID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating content of run %s: %w", runID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing run %s: %w", runID, err)
	}

	run.Content = draft
	run.UpdatedAt = now
	return run, nil
}

// RecordRepublish stores the publish result of re-publishing edited
// content. The run's status is left as is.
func (s *Store) RecordRepublish(ctx context.Context, blogID int64, runID string, result *models.PublishResult) error {
	raw, err := marshalString(result)
	if err != nil {
		return fmt.Errorf("encoding publish result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET publish_json = ?, updated_at = ? WHERE id = ? AND blog_id = ?`,
		raw, formatTime(time.Now()), runID, blogID,
	)
	if err != nil {
		return fmt.Errorf("recording republish of run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStaleRuns marks every non-terminal run as failed with the given
// message and returns how many were changed. It is run once at startup to
// close out runs interrupted by a restart.
func (s *Store) FailStaleRuns(ctx context.Context, message string) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ?, finished_at = ?
		 WHERE status IN (?, ?, ?, ?)`,
		string(models.RunFailed), message, now, now,
		string(models.RunStarted), string(models.RunResearched),
		string(models.RunContentGenerated), string(models.RunPublished),
	)
	if err != nil {
		return 0, fmt.Errorf("failing stale runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting stale runs: %w", err)
	}
	return n, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRun(ctx context.Context, q queryer, blogID int64, runID string) (*models.Run, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? AND blog_id = ?`, runID, blogID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return run, nil
}

func collectRuns(rows *sql.Rows) ([]models.Run, error) {
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single run row into a models.Run.
func scanRun(row scanner) (*models.Run, error) {
	var (
		run           models.Run
		status        string
		errMsg        sql.NullString
		failedStage   sql.NullString
		topicsJSON    sql.NullString
		contentJSON   sql.NullString
		publishJSON   sql.NullString
		promotionJSON sql.NullString
		createdAt     string
		updatedAt     string
		finishedAt    *string
	)

	if err := row.Scan(
		&run.ID, &run.BlogID, &run.Trigger, &status, &errMsg, &failedStage,
		&topicsJSON, &contentJSON, &publishJSON, &promotionJSON,
		&createdAt, &updatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.Error = errMsg.String
	run.FailedStage = failedStage.String
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	run.FinishedAt = parseTimePtr(finishedAt)

	if err := unmarshalString(topicsJSON.String, &run.Topics); err != nil {
		return nil, fmt.Errorf("decoding topics of run %s: %w", run.ID, err)
	}
	if contentJSON.Valid {
		run.Content = &models.ContentDraft{}
		if err := unmarshalString(contentJSON.String, run.Content); err != nil {
			return nil, fmt.Errorf("decoding content of run %s: %w", run.ID, err)
		}
	}
	if publishJSON.Valid {
		run.Publish = &models.PublishResult{}
		if err := unmarshalString(publishJSON.String, run.Publish); err != nil {
			return nil, fmt.Errorf("decoding publish result of run %s: %w", run.ID, err)
		}
	}
	if promotionJSON.Valid {
		run.Promotion = &models.PromotionResult{}
		if err := unmarshalString(promotionJSON.String, run.Promotion); err != nil {
			return nil, fmt.Errorf("decoding promotion result of run %s: %w", run.ID, err)
		}
	}

	return &run, nil
}
