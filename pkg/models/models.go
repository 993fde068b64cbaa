package models

import "time"

// User represents a registered account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// GitLabSettings holds a user's GitLab connection settings
type GitLabSettings struct {
	UserID    int64     `json:"-" db:"user_id"`
	URL       string    `json:"url" db:"url"`
	Token     string    `json:"token" db:"token"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AISettings holds a user's AI provider settings
type AISettings struct {
	UserID      int64     `json:"-" db:"user_id"`
	Provider    string    `json:"provider" db:"provider"`
	APIKey      string    `json:"api_key" db:"api_key"`
	BaseURL     string    `json:"base_url" db:"base_url"`
	Model       string    `json:"model" db:"model"`
	Temperature float64   `json:"temperature" db:"temperature"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// GitLabUser is the pass-through representation of a GitLab account
type GitLabUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	State     string `json:"state,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	WebURL    string `json:"web_url,omitempty"`
}

// Project is the pass-through representation of a GitLab project
type Project struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	NameWithNamespace string     `json:"name_with_namespace"`
	PathWithNamespace string     `json:"path_with_namespace"`
	Description       string     `json:"description"`
	WebURL            string     `json:"web_url"`
	DefaultBranch     string     `json:"default_branch"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
}

// MergeRequest is the pass-through representation of a GitLab MR,
// enriched with project info and the caller's approval status.
type MergeRequest struct {
	ID                    int          `json:"id"`
	IID                   int          `json:"iid"`
	ProjectID             int          `json:"project_id"`
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	State                 string       `json:"state"`
	SourceBranch          string       `json:"source_branch"`
	TargetBranch          string       `json:"target_branch"`
	WebURL                string       `json:"web_url"`
	SHA                   string       `json:"sha,omitempty"`
	Author                GitLabUser   `json:"author"`
	Assignees             []GitLabUser `json:"assignees,omitempty"`
	Reviewers             []GitLabUser `json:"reviewers,omitempty"`
	CreatedAt             *time.Time   `json:"created_at,omitempty"`
	UpdatedAt             *time.Time   `json:"updated_at,omitempty"`
	ProjectName           string       `json:"project_name,omitempty"`
	ProjectPath           string       `json:"project_path,omitempty"`
	ApprovedByCurrentUser bool         `json:"approved_by_current_user"`
	HasConflicts          bool         `json:"has_conflicts,omitempty"`
	MergeStatus           string       `json:"merge_status,omitempty"`
}

// DiffRefs are the SHAs GitLab needs for positioned comments
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	StartSHA string `json:"start_sha"`
	HeadSHA  string `json:"head_sha"`
}

// DiffFile is a single changed file in an MR
type DiffFile struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
}

// NotePosition anchors a note to a file/line in the diff
type NotePosition struct {
	BaseSHA      string `json:"base_sha"`
	StartSHA     string `json:"start_sha"`
	HeadSHA      string `json:"head_sha"`
	PositionType string `json:"position_type"`
	OldPath      string `json:"old_path,omitempty"`
	NewPath      string `json:"new_path,omitempty"`
	OldLine      *int   `json:"old_line,omitempty"`
	NewLine      *int   `json:"new_line,omitempty"`
}

// Note is a single comment on an MR
type Note struct {
	ID        int           `json:"id"`
	Body      string        `json:"body"`
	Author    GitLabUser    `json:"author"`
	System    bool          `json:"system"`
	Resolved  bool          `json:"resolved,omitempty"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
	Position  *NotePosition `json:"position,omitempty"`
}

// Discussion is a GitLab comment thread
type Discussion struct {
	ID             string `json:"id"`
	IndividualNote bool   `json:"individual_note"`
	Notes          []Note `json:"notes"`
}

// ApprovalState summarizes who approved an MR
type ApprovalState struct {
	Approved          bool         `json:"approved"`
	ApprovalsRequired int          `json:"approvals_required"`
	ApprovalsLeft     int          `json:"approvals_left"`
	ApprovedBy        []GitLabUser `json:"approved_by"`
	UserHasApproved   bool         `json:"user_has_approved"`
	UserCanApprove    bool         `json:"user_can_approve"`
}

// CommentSeverity classifies review findings
type CommentSeverity string

const (
	SeverityCritical   CommentSeverity = "critical"
	SeverityWarning    CommentSeverity = "warning"
	SeveritySuggestion CommentSeverity = "suggestion"
)

// ReviewComment is a single finding produced by the AI reviewer
type ReviewComment struct {
	FilePath    string          `json:"file_path"`
	Line        int             `json:"line_number"`
	Severity    CommentSeverity `json:"severity"`
	Description string          `json:"description"`
}

// FileReview holds the findings for a single file
type FileReview struct {
	FilePath string          `json:"file_path"`
	Comments []ReviewComment `json:"comments"`
}

// ReviewStats counts findings by severity
type ReviewStats struct {
	FilesReviewed int `json:"files_reviewed"`
	FilesSkipped  int `json:"files_skipped"`
	Critical      int `json:"critical"`
	Warning       int `json:"warning"`
	Suggestion    int `json:"suggestion"`
}

// ReviewResult is the payload returned once a review task completes
type ReviewResult struct {
	ProjectID  int               `json:"project_id"`
	MRIID      int               `json:"mr_iid"`
	Score      float64           `json:"score"`
	Summary    string            `json:"summary"`
	Files      []FileReview      `json:"files"`
	FileErrors map[string]string `json:"file_errors,omitempty"`
	Stats      ReviewStats       `json:"stats"`
	PostedAt   *time.Time        `json:"posted_at,omitempty"`
}

// ReviewRecord is a persisted row of review history
type ReviewRecord struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"-" db:"user_id"`
	ProjectID  int       `json:"project_id" db:"project_id"`
	MRIID      int       `json:"mr_iid" db:"mr_iid"`
	Score      float64   `json:"score" db:"score"`
	Critical   int       `json:"critical" db:"critical"`
	Warning    int       `json:"warning" db:"warning"`
	Suggestion int       `json:"suggestion" db:"suggestion"`
	Summary    string    `json:"summary" db:"summary"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
