package analyses

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"screenplay-analyzer/internal/budget"
	"screenplay-analyzer/internal/jobqueue"
	"screenplay-analyzer/internal/progress"
	"screenplay-analyzer/internal/shared/telemetry"
	"screenplay-analyzer/internal/shared/util"
	"screenplay-analyzer/internal/usage"
)

// DefaultMaxUploadBytes caps PDF uploads.
const DefaultMaxUploadBytes int64 = 50 << 20

// ErrFileTooLarge is returned for uploads above the configured cap.
var ErrFileTooLarge = errors.New("file too large")

// Runner executes one analysis to completion.
type Runner interface {
	Run(ctx context.Context, sub Submission) error
}

// JobSubmitter schedules work without blocking.
type JobSubmitter interface {
	Submit(job jobqueue.Job) error
}

// LimitChecker enforces the monthly usage caps.
type LimitChecker interface {
	CheckLimits(ctx context.Context, userID string) (usage.Limits, error)
}

// TextExtractor reads uploaded files.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, fileName string) (string, error)
}

// ProgressWriter records progress milestones.
type ProgressWriter interface {
	Update(ctx context.Context, id, stage string, pct int, message string, detail map[string]any) error
}

// Service accepts submissions, persists them and hands them to the job queue.
type Service struct {
	Store          Store
	Usage          LimitChecker
	Queue          JobSubmitter
	Runner         Runner
	Extractor      TextExtractor
	Progress       ProgressWriter
	MaxUploadBytes int64
	Now            func() time.Time
}

// TextInput is a pasted screenplay.
type TextInput struct {
	UserID string
	Title  string
	Text   string
	Genre  string
	Budget *float64
}

// PDFInput is an uploaded screenplay file.
type PDFInput struct {
	UserID   string
	Title    string
	Genre    string
	Budget   *float64
	FileName string
	Data     []byte
}

// SubmitText validates and schedules a pasted screenplay.
func (s *Service) SubmitText(ctx context.Context, in TextInput) (Analysis, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Analysis{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if strings.TrimSpace(in.Text) == "" {
		return Analysis{}, fmt.Errorf("%w: screenplay text is required", ErrInvalid)
	}
	return s.submit(ctx, SourceText, in.UserID, in.Title, in.Text, in.Genre, in.Budget, "")
}

// SubmitPDF validates an upload, extracts its text and schedules it.
func (s *Service) SubmitPDF(ctx context.Context, in PDFInput) (Analysis, error) {
	name, err := util.SanitizeFileName(filepath.Base(strings.TrimSpace(in.FileName)))
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return Analysis{}, fmt.Errorf("%w: only PDF files are accepted", ErrInvalid)
	}
	if int64(len(in.Data)) > s.maxUpload() {
		return Analysis{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(in.Data), s.maxUpload())
	}
	if len(in.Data) == 0 {
		return Analysis{}, fmt.Errorf("%w: file is empty", ErrInvalid)
	}
	if s.Extractor == nil {
		return Analysis{}, errors.New("pdf extraction is not configured")
	}
	text, err := s.Extractor.ExtractText(ctx, in.Data, name)
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return s.submit(ctx, SourcePDF, in.UserID, title, text, in.Genre, in.Budget, name)
}

func (s *Service) submit(ctx context.Context, source, userID, title, text, genre string, userBudget *float64, fileName string) (Analysis, error) {
	if userBudget != nil {
		if err := budget.ValidateUserBudget(*userBudget); err != nil {
			return Analysis{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if *userBudget == 0 {
			userBudget = nil
		}
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "anonymous"
	}

	if s.Usage != nil {
		if _, err := s.Usage.CheckLimits(ctx, userID); err != nil {
			if errors.Is(err, usage.ErrLimitReached) {
				return Analysis{}, err
			}
			telemetry.Warn("usage.check_failed", map[string]any{"user_id": userID, "error": err})
		}
	}

	now := s.now()
	sub := Submission{
		ID:         newAnalysisID(source, now),
		UserID:     userID,
		Title:      strings.TrimSpace(title),
		Text:       text,
		Genre:      strings.TrimSpace(genre),
		Budget:     userBudget,
		Source:     source,
		FileName:   fileName,
		TextLength: utf8.RuneCountInString(text),
		CreatedAt:  now,
	}
	analysis := Analysis{Submission: sub, Status: StatusPending, UpdatedAt: now}
	if err := s.Store.Create(ctx, analysis); err != nil {
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}
	if s.Progress != nil {
		_ = s.Progress.Update(ctx, sub.ID, progress.StageQueued, 0, "Analysis queued", nil)
	}

	requestID := requestIDFromContext(ctx)
	job := jobqueue.Job{
		ID: sub.ID,
		Work: func(jobCtx context.Context) error {
			return s.Runner.Run(withRequestID(jobCtx, requestID), sub)
		},
		OnFinish: func(err error) {
			if err != nil {
				s.settleFailed(ctx, sub.ID, err)
			}
		},
	}
	if err := s.Queue.Submit(job); err != nil {
		detail := "failed to queue analysis: " + err.Error()
		_ = s.Store.UpdateStatus(ctx, sub.ID, StatusError, detail)
		if s.Progress != nil {
			_ = s.Progress.Update(ctx, sub.ID, progress.StageError, 0, detail, nil)
		}
		return Analysis{}, fmt.Errorf("queue analysis: %w", err)
	}

	telemetry.Info("analysis.status", map[string]any{
		"analysis_id": sub.ID,
		"user_id":     userID,
		"status":      StatusPending,
		"source":      source,
		"text_length": sub.TextLength,
		"text_digest": util.ContentDigest(text),
		"request_id":  requestID,
	})
	return analysis, nil
}

// settleFailed marks a job that ended without a terminal status as errored.
// Jobs the runner already finished keep their status.
func (s *Service) settleFailed(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	detail := util.SanitizeMessage("analysis did not finish: "+cause.Error(), 500)
	err := s.Store.UpdateStatus(ctx, id, StatusError, detail)
	if errors.Is(err, ErrTerminal) {
		return
	}
	if err != nil {
		telemetry.Error("analysis.settle_failed", map[string]any{"analysis_id": id, "error": err})
		return
	}
	if s.Progress != nil {
		_ = s.Progress.Update(ctx, id, progress.StageError, 0, detail, nil)
	}
	telemetry.Warn("analysis.status", map[string]any{"analysis_id": id, "status": StatusError, "error": cause})
}

// Get returns the analysis by id.
func (s *Service) Get(ctx context.Context, id string) (Analysis, error) {
	return s.Store.Get(ctx, id)
}

// ListByUser returns a page of a user's analyses, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

// newAnalysisID builds ids such as text_1718000000000_1a2b3c4d.
func newAnalysisID(source string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", source, now.UnixMilli(), suffix)
}
