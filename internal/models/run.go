package models

import "time"

// RunStatus is the lifecycle state of a content run.
type RunStatus string

const (
	RunStarted          RunStatus = "started"
	RunResearched       RunStatus = "researched"
	RunContentGenerated RunStatus = "content-generated"
	RunPublished        RunStatus = "published"
	RunCompleted        RunStatus = "completed"
	RunPartial          RunStatus = "partial"
	RunSkipped          RunStatus = "skipped"
	RunError            RunStatus = "error"
	RunFailed           RunStatus = "failed"
)

// runTransitions lists every legal edge of the run state machine. Terminal
// states have no outgoing edges.
var runTransitions = map[RunStatus][]RunStatus{
	RunStarted:          {RunResearched, RunFailed},
	RunResearched:       {RunContentGenerated, RunFailed},
	RunContentGenerated: {RunPublished, RunCompleted, RunFailed},
	RunPublished:        {RunCompleted, RunPartial, RunSkipped, RunError, RunFailed},
}

// Terminal reports whether no further transitions are possible from s.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunPartial, RunSkipped, RunError, RunFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := runTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, to := range runTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Run is one execution of the content pipeline for a single blog. Stage
// outputs are appended as stages complete and are kept when a later stage
// fails.
type Run struct {
	ID          string           `json:"id"`
	BlogID      int64            `json:"blog_id"`
	Trigger     string           `json:"trigger"` // "manual" | "schedule"
	Status      RunStatus        `json:"status"`
	Error       string           `json:"error,omitempty"`
	FailedStage string           `json:"failed_stage,omitempty"`
	Topics      []TopicCandidate `json:"topics,omitempty"`
	Content     *ContentDraft    `json:"content,omitempty"`
	Publish     *PublishResult   `json:"publish,omitempty"`
	Promotion   *PromotionResult `json:"promotion,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}

// RunPatch carries the stage output written together with a status change.
// Nil fields leave the stored value untouched.
type RunPatch struct {
	Topics    []TopicCandidate
	Content   *ContentDraft
	Publish   *PublishResult
	Promotion *PromotionResult
}
