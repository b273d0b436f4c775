package models

import "time"

// TaskState is the lifecycle state of an issue or pull request as reported by the provider
type TaskState string

const (
	TaskStateOpen   TaskState = "open"
	TaskStateClosed TaskState = "closed"
	TaskStateMerged TaskState = "merged"
)

// TaskType distinguishes the two task-bearing entities
type TaskType string

const (
	TaskTypeIssue       TaskType = "issue"
	TaskTypePullRequest TaskType = "pr"
)

// User is a developer whose activity is synced and scored
type User struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	GitHubID  int64     `json:"github_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository is a synced source repository owned by a user
type Repository struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ProviderID   int64     `json:"provider_id"`
	Name         string    `json:"name"`
	FullName     string    `json:"full_name"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Language     string    `json:"language,omitempty"`
	IsPrivate    bool      `json:"is_private"`
	StarCount    int       `json:"star_count"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Issue is a task-bearing entity identified by (RepoID, ProviderID).
// Complexity is on a 1-10 scale and Priority on a 1-5 scale; both are derived at sync time.
type Issue struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	RepoID       string     `json:"repo_id"`
	RepoName     string     `json:"repo_name,omitempty"`
	ProviderID   int64      `json:"provider_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body,omitempty"`
	State        TaskState  `json:"state"`
	Complexity   float64    `json:"complexity"`
	Priority     float64    `json:"priority"`
	Labels       []string   `json:"labels"`
	CommentCount int        `json:"comment_count"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PullRequest is a task-bearing entity identified by (RepoID, ProviderID)
type PullRequest struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	RepoID         string     `json:"repo_id"`
	RepoName       string     `json:"repo_name,omitempty"`
	ProviderID     int64      `json:"provider_id"`
	Number         int        `json:"number"`
	Title          string     `json:"title"`
	Body           string     `json:"body,omitempty"`
	State          TaskState  `json:"state"`
	Complexity     float64    `json:"complexity"`
	Labels         []string   `json:"labels"`
	Additions      int        `json:"additions"`
	Deletions      int        `json:"deletions"`
	ChangedFiles   int        `json:"changed_files"`
	ReviewComments int        `json:"review_comments"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Commit is a synced commit, unique per (RepoID, SHA)
type Commit struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RepoID       string    `json:"repo_id"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	FilesChanged int       `json:"files_changed"`
	CommittedAt  time.Time `json:"committed_at"`
}

// ContextSwitch is an immutable record of a task-type transition.
// EstimatedCost is in minutes.
type ContextSwitch struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	FromTaskType  string    `json:"from_task_type"`
	ToTaskType    string    `json:"to_task_type"`
	SwitchedAt    time.Time `json:"switched_at"`
	EstimatedCost float64   `json:"estimated_cost"`
}

// FocusSession is a span of focused work. EndedAt is nil while the session is open.
// Duration is in seconds.
type FocusSession struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	TaskType          string     `json:"task_type"`
	TaskID            string     `json:"task_id,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Duration          int        `json:"duration"`
	Interrupted       bool       `json:"interrupted"`
	InterruptionCount int        `json:"interruption_count"`
}

// IsOpen reports whether the session has not been closed yet
func (s *FocusSession) IsOpen() bool {
	return s.EndedAt == nil
}

// DailyAnalytics is the per-user, per-day activity rollup
type DailyAnalytics struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Date              time.Time `json:"date"`
	TotalFocusMinutes int       `json:"total_focus_minutes"`
	ContextSwitches   int       `json:"context_switches"`
	AvgCognitiveLoad  float64   `json:"avg_cognitive_load"`
	DeepWorkStreaks   int       `json:"deep_work_streaks"`
	PeakFocusHour     int       `json:"peak_focus_hour"`
	TasksCompleted    int       `json:"tasks_completed"`
}
