package jobs

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/resume-forge/internal/blob"
	"github.com/yourusername/resume-forge/internal/config"
	"github.com/yourusername/resume-forge/internal/resume"
)

type stubEnqueuer struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	s.opts = append(s.opts, opts)
	return &asynq.TaskInfo{}, nil
}

type stubInspector struct {
	info   *asynq.TaskInfo
	err    error
	closed bool
}

func (s *stubInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	return s.info, s.err
}

func (s *stubInspector) Close() error {
	s.closed = true
	return nil
}

type stubProcessor struct {
	failFor map[string]error
}

func (s *stubProcessor) Process(ctx context.Context, filename string, data []byte) (*resume.Profile, error) {
	if err, ok := s.failFor[filename]; ok {
		return nil, err
	}
	return &resume.Profile{
		Filename: filename,
		Name:     "Candidate " + filename,
		Email:    "test@example.com",
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxFileSize:     20_000_000,
		BlobTTL:         time.Hour,
		JobTimeout:      30 * time.Minute,
		FileParallelism: 2,
	}
}

func newTestManager(store blob.Store, enq *stubEnqueuer, insp *stubInspector, proc Processor) *Manager {
	if proc == nil {
		proc = &stubProcessor{}
	}
	return &Manager{
		cfg:       testConfig(),
		enqueuer:  enq,
		inspector: insp,
		store:     store,
		processor: proc,
		builder:   resume.BuildWorkbook,
		logger:    zap.NewNop(),
	}
}

func pdfBytes(body string) []byte {
	return []byte("%PDF-1.4\n" + body)
}

func docxBytes(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create zip entry: %v", err)
	}
	doc := fmt.Sprintf(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`, text)
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestSubmitRejectsUnsupportedFilesButKeepsBatch(t *testing.T) {
	store := blob.NewMemoryStore()
	enq := &stubEnqueuer{}
	m := newTestManager(store, enq, &stubInspector{}, nil)

	jobID, err := m.Submit(context.Background(), []Upload{
		{Filename: "notes.txt", Data: []byte("plain text")},
		{Filename: "resume.pdf", Data: pdfBytes("hello")},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if jobID == "" {
		t.Fatal("Submit returned empty job id")
	}
	if len(enq.tasks) != 1 {
		t.Fatalf("expected exactly one enqueued task, got %d", len(enq.tasks))
	}

	var payload TaskPayload
	if err := unmarshalPayload(enq.tasks[0], &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.JobID != jobID {
		t.Errorf("payload jobId = %q, want %q", payload.JobID, jobID)
	}
	if len(payload.Files) != 1 {
		t.Fatalf("expected 1 accepted file, got %d", len(payload.Files))
	}
	for key, name := range payload.Files {
		if name != "resume.pdf" {
			t.Errorf("accepted filename = %q, want resume.pdf", name)
		}
		data, err := store.Get(context.Background(), key)
		if err != nil || data == nil {
			t.Errorf("input blob %q not readable after submit: %v", key, err)
		}
		if !strings.HasPrefix(key, "job:"+jobID+":file:") {
			t.Errorf("unexpected key layout: %q", key)
		}
	}
}

func TestSubmitFailsWhenNoFileIsAccepted(t *testing.T) {
	store := blob.NewMemoryStore()
	enq := &stubEnqueuer{}
	m := newTestManager(store, enq, &stubInspector{}, nil)

	_, err := m.Submit(context.Background(), []Upload{
		{Filename: "notes.txt", Data: []byte("plain text")},
		{Filename: "image.png", Data: []byte("\x89PNG\r\n")},
	})
	assertErrorCode(t, err, CodeInvalidInput)
	if len(enq.tasks) != 0 {
		t.Errorf("no task should be enqueued, got %d", len(enq.tasks))
	}
}

func TestSubmitRejectsMismatchedContent(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{}, nil)

	// 拡張子は .pdf だが中身はZIP
	_, err := m.Submit(context.Background(), []Upload{
		{Filename: "fake.pdf", Data: docxBytes(t, "payload")},
	})
	assertErrorCode(t, err, CodeInvalidInput)
}

func TestSubmitRejectsOversizedFile(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{}, nil)
	m.cfg.MaxFileSize = 64

	big := append(pdfBytes(""), bytes.Repeat([]byte("x"), 128)...)
	_, err := m.Submit(context.Background(), []Upload{
		{Filename: "big.pdf", Data: big},
	})
	assertErrorCode(t, err, CodePayloadTooLarge)
}

func TestSubmitCleansUpBlobsOnEnqueueFailure(t *testing.T) {
	store := blob.NewMemoryStore()
	enq := &stubEnqueuer{err: errors.New("broker unavailable")}
	m := newTestManager(store, enq, &stubInspector{}, nil)

	_, err := m.Submit(context.Background(), []Upload{
		{Filename: "resume.pdf", Data: pdfBytes("hello")},
	})
	assertErrorCode(t, err, CodeQueueError)

	if n := store.Len(); n != 0 {
		t.Errorf("expected input blobs to be cleaned up, %d keys remain", n)
	}
}

func TestPollReportsCompleteWhenResultExists(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{err: errors.New("should not be called")}, nil)

	jobID := "job-1"
	if err := store.Set(context.Background(), blob.ResultKey(jobID), []byte("PK\x03\x04artifact"), time.Hour); err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}

	info, err := m.Poll(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if info.Status != StatusComplete {
		t.Errorf("status = %q, want %q", info.Status, StatusComplete)
	}
	if info.DownloadURL != "/download/job-1" {
		t.Errorf("download_url = %q, want /download/job-1", info.DownloadURL)
	}
}

func TestPollReportsFailureFromErrorRecord(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{}, nil)

	jobID := "job-2"
	record := errSentinel + " no data processed"
	if err := store.Set(context.Background(), blob.ResultKey(jobID), []byte(record), time.Hour); err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}

	info, err := m.Poll(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if info.Status != StatusFailed {
		t.Errorf("status = %q, want %q", info.Status, StatusFailed)
	}
	if info.Error != record {
		t.Errorf("error = %q, want %q", info.Error, record)
	}
}

func TestPollFallsBackToQueueState(t *testing.T) {
	tests := []struct {
		name string
		insp *stubInspector
		want Status
	}{
		{
			name: "archived task means failure",
			insp: &stubInspector{info: &asynq.TaskInfo{State: asynq.TaskStateArchived}},
			want: StatusFailed,
		},
		{
			name: "active task is pending",
			insp: &stubInspector{info: &asynq.TaskInfo{State: asynq.TaskStateActive}},
			want: StatusPending,
		},
		{
			name: "unknown job is pending",
			insp: &stubInspector{err: errors.New("task not found")},
			want: StatusPending,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := blob.NewMemoryStore()
			m := newTestManager(store, &stubEnqueuer{}, tc.insp, nil)

			info, err := m.Poll(context.Background(), "job-3")
			if err != nil {
				t.Fatalf("Poll returned error: %v", err)
			}
			if info.Status != tc.want {
				t.Errorf("status = %q, want %q", info.Status, tc.want)
			}
		})
	}
}

func TestRetrieveIsOneTime(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{}, nil)

	jobID := "job-4"
	artifact := []byte("PK\x03\x04workbook-bytes")
	if err := store.Set(context.Background(), blob.ResultKey(jobID), artifact, time.Hour); err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}

	got, err := m.Retrieve(context.Background(), jobID)
	if err != nil {
		t.Fatalf("first Retrieve returned error: %v", err)
	}
	if !bytes.Equal(got, artifact) {
		t.Error("retrieved artifact does not match stored bytes")
	}

	_, err = m.Retrieve(context.Background(), jobID)
	assertErrorCode(t, err, CodeResultNotFound)
}

func TestRetrieveDoesNotConsumeErrorRecord(t *testing.T) {
	store := blob.NewMemoryStore()
	m := newTestManager(store, &stubEnqueuer{}, &stubInspector{}, nil)

	jobID := "job-5"
	record := errSentinel + " worker crashed"
	if err := store.Set(context.Background(), blob.ResultKey(jobID), []byte(record), time.Hour); err != nil {
		t.Fatalf("failed to seed result: %v", err)
	}

	_, err := m.Retrieve(context.Background(), jobID)
	assertErrorCode(t, err, CodeJobFailed)

	// 失敗レコードはダウンロードでは消費されず、ポーリングから見え続ける
	info, err := m.Poll(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if info.Status != StatusFailed {
		t.Errorf("status after failed download = %q, want %q", info.Status, StatusFailed)
	}
}

func TestShutdownClosesInspector(t *testing.T) {
	insp := &stubInspector{}
	m := newTestManager(blob.NewMemoryStore(), &stubEnqueuer{}, insp, nil)

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if !insp.closed {
		t.Error("Shutdown should close the inspector")
	}
}

func unmarshalPayload(task *asynq.Task, payload *TaskPayload) error {
	return json.Unmarshal(task.Payload(), payload)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *jobs.Error, got %T: %v", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %s, want %s", apiErr.Code, code)
	}
}
