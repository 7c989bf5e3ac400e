package analyses

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"screenplay-analyzer/internal/jobqueue"
	"screenplay-analyzer/internal/progress"
	"screenplay-analyzer/internal/usage"
)

type queueStub struct {
	mu   sync.Mutex
	jobs []jobqueue.Job
	err  error
}

func (q *queueStub) Submit(j jobqueue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	return nil
}

type runnerStub struct {
	mu   sync.Mutex
	subs []Submission
	reqs []string
}

func (r *runnerStub) Run(ctx context.Context, sub Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	r.reqs = append(r.reqs, RequestIDFromContext(ctx))
	return nil
}

type limitStub struct {
	err error
}

func (l limitStub) CheckLimits(context.Context, string) (usage.Limits, error) {
	return usage.Limits{WithinLimits: l.err == nil}, l.err
}

type extractorStub struct {
	text string
	err  error
}

func (e extractorStub) ExtractText(context.Context, []byte, string) (string, error) {
	return e.text, e.err
}

type progressRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (p *progressRecorder) Update(_ context.Context, _, stage string, _ int, _ string, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, stage)
	return nil
}

type serviceFixture struct {
	svc      *Service
	repo     *MemoryRepo
	queue    *queueStub
	runner   *runnerStub
	progress *progressRecorder
}

func newServiceFixture() serviceFixture {
	f := serviceFixture{
		repo:     NewMemoryRepo(),
		queue:    &queueStub{},
		runner:   &runnerStub{},
		progress: &progressRecorder{},
	}
	f.svc = &Service{
		Store:     f.repo,
		Usage:     limitStub{},
		Queue:     f.queue,
		Runner:    f.runner,
		Extractor: extractorStub{text: "FADE IN:\nINT. HOUSE - DAY"},
		Progress:  f.progress,
		Now:       func() time.Time { return time.UnixMilli(1718000000000) },
	}
	return f
}

var textIDPattern = regexp.MustCompile(`^text_1718000000000_[0-9a-f]{8}$`)

func TestSubmitTextQueuesJob(t *testing.T) {
	f := newServiceFixture()
	ctx := WithRequestID(context.Background(), "req-1")

	a, err := f.svc.SubmitText(ctx, TextInput{UserID: "u1", Title: " Night Train ", Text: "INT. TRAIN - NIGHT", Genre: "Thriller"})
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if !textIDPattern.MatchString(a.ID) {
		t.Fatalf("unexpected id format %q", a.ID)
	}
	if a.Status != StatusPending || a.Title != "Night Train" || a.TextLength != 18 {
		t.Fatalf("unexpected analysis: %+v", a)
	}
	stored, err := f.repo.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Text != "INT. TRAIN - NIGHT" {
		t.Fatalf("expected text persisted, got %q", stored.Text)
	}
	if len(f.progress.stages) != 1 || f.progress.stages[0] != progress.StageQueued {
		t.Fatalf("expected queued progress event, got %v", f.progress.stages)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].ID != a.ID {
		t.Fatalf("expected one queued job for %s, got %+v", a.ID, f.queue.jobs)
	}

	if err := f.queue.jobs[0].Work(context.Background()); err != nil {
		t.Fatalf("job work: %v", err)
	}
	if len(f.runner.subs) != 1 || f.runner.subs[0].Text != "INT. TRAIN - NIGHT" {
		t.Fatalf("runner did not receive the submission: %+v", f.runner.subs)
	}
	if f.runner.reqs[0] != "req-1" {
		t.Fatalf("expected request id to follow the job, got %q", f.runner.reqs[0])
	}
}

func TestSubmitTextDefaultsUser(t *testing.T) {
	f := newServiceFixture()
	a, err := f.svc.SubmitText(context.Background(), TextInput{Title: "T", Text: "x"})
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if a.UserID != "anonymous" {
		t.Fatalf("expected anonymous user, got %q", a.UserID)
	}
}

func TestSubmitTextValidation(t *testing.T) {
	neg := -5.0
	tiny := 500.0
	cases := []struct {
		name string
		in   TextInput
	}{
		{name: "missing title", in: TextInput{Text: "x"}},
		{name: "blank text", in: TextInput{Title: "T", Text: "   "}},
		{name: "negative budget", in: TextInput{Title: "T", Text: "x", Budget: &neg}},
		{name: "implausible budget", in: TextInput{Title: "T", Text: "x", Budget: &tiny}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture()
			_, err := f.svc.SubmitText(context.Background(), tc.in)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if len(f.queue.jobs) != 0 {
				t.Fatalf("expected nothing queued")
			}
		})
	}
}

func TestSubmitTextZeroBudgetMeansUnset(t *testing.T) {
	f := newServiceFixture()
	zero := 0.0
	a, err := f.svc.SubmitText(context.Background(), TextInput{Title: "T", Text: "x", Budget: &zero})
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if a.Budget != nil {
		t.Fatalf("expected nil budget, got %v", *a.Budget)
	}
}

func TestSubmitTextLimitReached(t *testing.T) {
	f := newServiceFixture()
	f.svc.Usage = limitStub{err: usage.ErrLimitReached}

	_, err := f.svc.SubmitText(context.Background(), TextInput{Title: "T", Text: "x"})
	if !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if len(f.queue.jobs) != 0 {
		t.Fatalf("expected nothing queued")
	}
}

func TestSubmitTextLedgerFailureFailsOpen(t *testing.T) {
	f := newServiceFixture()
	f.svc.Usage = limitStub{err: errors.New("db down")}

	if _, err := f.svc.SubmitText(context.Background(), TextInput{Title: "T", Text: "x"}); err != nil {
		t.Fatalf("expected submission to proceed, got %v", err)
	}
	if len(f.queue.jobs) != 1 {
		t.Fatalf("expected job queued")
	}
}

func TestSubmitMarksErrorWhenQueueRejects(t *testing.T) {
	f := newServiceFixture()
	f.queue.err = jobqueue.ErrClosed

	_, err := f.svc.SubmitText(context.Background(), TextInput{UserID: "u1", Title: "T", Text: "x"})
	if !errors.Is(err, jobqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	list, _ := f.repo.ListByUser(context.Background(), "u1", 0, 0)
	if len(list) != 1 || list[0].Status != StatusError {
		t.Fatalf("expected one errored analysis, got %+v", list)
	}
	if !strings.Contains(list[0].Error, "queue") {
		t.Fatalf("expected queue error detail, got %q", list[0].Error)
	}
}

func TestDroppedJobIsMarkedError(t *testing.T) {
	f := newServiceFixture()
	ctx, cancel := context.WithCancel(context.Background())
	a, err := f.svc.SubmitText(ctx, TextInput{UserID: "u1", Title: "T", Text: "x"})
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	cancel()

	f.queue.jobs[0].OnFinish(jobqueue.ErrDropped)

	stored, err := f.repo.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusError || !strings.Contains(stored.Error, "did not finish") {
		t.Fatalf("expected errored analysis, got status %q detail %q", stored.Status, stored.Error)
	}
	last := f.progress.stages[len(f.progress.stages)-1]
	if last != progress.StageError {
		t.Fatalf("expected error progress event, got %v", f.progress.stages)
	}
}

func TestFinishedJobKeepsTerminalStatus(t *testing.T) {
	f := newServiceFixture()
	a, err := f.svc.SubmitText(context.Background(), TextInput{UserID: "u1", Title: "T", Text: "x"})
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if err := f.repo.UpdateStatus(context.Background(), a.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	f.queue.jobs[0].OnFinish(errors.New("late timeout"))

	stored, _ := f.repo.Get(context.Background(), a.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed status to survive, got %q", stored.Status)
	}
	if len(f.progress.stages) != 1 {
		t.Fatalf("expected no extra progress events, got %v", f.progress.stages)
	}
}

func TestSubmitPDF(t *testing.T) {
	f := newServiceFixture()
	a, err := f.svc.SubmitPDF(context.Background(), PDFInput{UserID: "u1", FileName: "Night Train.PDF", Data: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("SubmitPDF: %v", err)
	}
	if !strings.HasPrefix(a.ID, "pdf_") {
		t.Fatalf("expected pdf_ id, got %q", a.ID)
	}
	if a.Title != "Night Train" || a.FileName != "Night Train.PDF" || a.Source != SourcePDF {
		t.Fatalf("unexpected analysis: %+v", a)
	}
}

func TestSubmitPDFRejections(t *testing.T) {
	cases := []struct {
		name    string
		in      PDFInput
		extract extractorStub
		want    error
	}{
		{name: "wrong extension", in: PDFInput{FileName: "script.docx", Data: []byte("x")}, want: ErrInvalid},
		{name: "empty file", in: PDFInput{FileName: "script.pdf"}, want: ErrInvalid},
		{name: "too large", in: PDFInput{FileName: "script.pdf", Data: make([]byte, 11)}, want: ErrFileTooLarge},
		{name: "unreadable", in: PDFInput{FileName: "script.pdf", Data: []byte("x")}, extract: extractorStub{err: errors.New("no text")}, want: ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture()
			f.svc.MaxUploadBytes = 10
			f.svc.Extractor = tc.extract
			if _, err := f.svc.SubmitPDF(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	f := newServiceFixture()
	clock := time.UnixMilli(1718000000000)
	f.svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	first, _ := f.svc.SubmitText(context.Background(), TextInput{UserID: "u1", Title: "First", Text: "x"})
	second, _ := f.svc.SubmitText(context.Background(), TextInput{UserID: "u1", Title: "Second", Text: "x"})
	_, _ = f.svc.SubmitText(context.Background(), TextInput{UserID: "u2", Title: "Other", Text: "x"})

	list, err := f.svc.ListByUser(context.Background(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}

	page, err := f.svc.ListByUser(context.Background(), "u1", 1, 1)
	if err != nil {
		t.Fatalf("ListByUser page: %v", err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Fatalf("expected second page to hold the oldest analysis, got %+v", page)
	}
	past, _ := f.svc.ListByUser(context.Background(), "u1", 10, 5)
	if len(past) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", past)
	}
}
