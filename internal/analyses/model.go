package analyses

import (
	"time"

	"screenplay-analyzer/internal/reconcile"
)

// Job states. Completed and error are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Submission sources.
const (
	SourceText = "text"
	SourcePDF  = "pdf"
)

// IsTerminal reports whether status can no longer change.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// Submission is one screenplay handed in for analysis. It does not change after creation.
type Submission struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	Text     string   `json:"-"`
	Genre    string   `json:"genre,omitempty"`
	Budget   *float64 `json:"budget,omitempty"`
	Source   string   `json:"source"`
	FileName string   `json:"file_name,omitempty"`
	// TextLength is the character count of the analyzed text.
	TextLength int       `json:"text_length"`
	CreatedAt  time.Time `json:"created_at"`
}

// Analysis is a submission together with its job state and, once completed, the record.
type Analysis struct {
	Submission
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Record      *reconcile.Record `json:"result,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}
