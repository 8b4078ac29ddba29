package generation

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a batch job or one of its items.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ItemProgress tracks one subsection within a batch job.
type ItemProgress struct {
	SubsectionID   string     `json:"subsection_id"`
	Title          string     `json:"title"`
	Position       int        `json:"position"`
	SectionTitle   string     `json:"section_title"`
	WidgetType     string     `json:"widget_type"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	resolvedConfig map[string]interface{}
	dependencyIDs  []string
}

// Job is one in-flight or finished batch generation run. All mutation goes
// through methods holding the job's own mutex; the background worker and
// status polls race otherwise.
type Job struct {
	mu sync.Mutex

	ID           string
	TemplateID   string
	Status       Status
	Items        []*ItemProgress
	CurrentIndex int
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        string
}

// JobSnapshot is an immutable copy of a job's state for status polling.
type JobSnapshot struct {
	JobID        string         `json:"job_id"`
	TemplateID   string         `json:"template_id"`
	Status       Status         `json:"status"`
	CurrentIndex int            `json:"current_index"`
	Total        int            `json:"total_subsections"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Error        string         `json:"error,omitempty"`
	Subsections  []ItemProgress `json:"subsections"`
}

func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusInProgress
}

func (j *Job) startItem(index int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.CurrentIndex = index
	j.Items[index].Status = StatusInProgress
	j.Items[index].StartedAt = &now
}

func (j *Job) finishItem(index int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	item := j.Items[index]
	item.CompletedAt = &now
	if err != nil {
		item.Status = StatusFailed
		item.Error = err.Error()
	} else {
		item.Status = StatusCompleted
	}
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.CompletedAt = &now
	if err != nil {
		j.Status = StatusFailed
		j.Error = err.Error()
	} else {
		j.Status = StatusCompleted
	}
}

// Snapshot copies the job state under lock.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	items := make([]ItemProgress, len(j.Items))
	for i, item := range j.Items {
		items[i] = *item
	}
	return JobSnapshot{
		JobID:        j.ID,
		TemplateID:   j.TemplateID,
		Status:       j.Status,
		CurrentIndex: j.CurrentIndex,
		Total:        len(j.Items),
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		Error:        j.Error,
		Subsections:  items,
	}
}

func (j *Job) finishedBefore(cutoff time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.CompletedAt != nil && j.CompletedAt.Before(cutoff)
}
