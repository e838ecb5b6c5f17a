package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scaffyhq/scaffy/internal/domain"
	"github.com/scaffyhq/scaffy/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory storage.Store for handler tests.
type memStore struct {
	breakdowns map[uuid.UUID]*domain.TaskBreakdown
	sessions   map[uuid.UUID]*domain.HintSession
}

func newMemStore() *memStore {
	return &memStore{
		breakdowns: make(map[uuid.UUID]*domain.TaskBreakdown),
		sessions:   make(map[uuid.UUID]*domain.HintSession),
	}
}

func (s *memStore) SaveBreakdown(_ context.Context, b *domain.TaskBreakdown) error {
	s.breakdowns[b.ID] = b
	return nil
}

func (s *memStore) GetBreakdown(_ context.Context, id uuid.UUID) (*domain.TaskBreakdown, error) {
	b, ok := s.breakdowns[id]
	if !ok {
		return nil, domain.ErrBreakdownNotFound
	}
	return b, nil
}

func (s *memStore) ListBreakdowns(_ context.Context, limit, offset int) ([]*domain.TaskBreakdown, error) {
	var out []*domain.TaskBreakdown
	for _, b := range s.breakdowns {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) AttachTests(_ context.Context, id uuid.UUID, tests []domain.TestCase) error {
	b, ok := s.breakdowns[id]
	if !ok {
		return domain.ErrBreakdownNotFound
	}
	b.Tests = tests
	return nil
}

func (s *memStore) DeleteBreakdown(_ context.Context, id uuid.UUID) error {
	if _, ok := s.breakdowns[id]; !ok {
		return domain.ErrBreakdownNotFound
	}
	delete(s.breakdowns, id)
	return nil
}

func (s *memStore) GetOrCreateHintSession(_ context.Context, breakdownID uuid.UUID, taskID int) (*domain.HintSession, error) {
	for _, sess := range s.sessions {
		if sess.BreakdownID == breakdownID && sess.TaskID == taskID {
			return sess, nil
		}
	}
	sess := &domain.HintSession{
		ID:          uuid.New(),
		BreakdownID: breakdownID,
		TaskID:      taskID,
		Hints:       []string{},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *memStore) GetHintSession(_ context.Context, id uuid.UUID) (*domain.HintSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrHintSessionNotFound
	}
	return sess, nil
}

func (s *memStore) RecordHint(_ context.Context, id uuid.UUID, hint string) (*domain.HintSession, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrHintSessionNotFound
	}
	sess.Hints = append(sess.Hints, hint)
	sess.HelpCount++
	sess.UpdatedAt = time.Now().UTC()
	return sess, nil
}

// fakeParser returns a canned breakdown.
type fakeParser struct {
	breakdown *domain.TaskBreakdown
	err       error
}

func (f *fakeParser) ParseAssignment(_ context.Context, _ domain.Assignment) (*domain.TaskBreakdown, error) {
	return f.breakdown, f.err
}

func (f *fakeParser) GenerateTestCases(_ context.Context, _ string, _ []domain.FileEntry, _ string) []domain.TestCase {
	return nil
}

type fakePublisher struct {
	jobs []*queue.TestGenJob
}

func (f *fakePublisher) PublishTestGenJob(_ context.Context, job *queue.TestGenJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeHelper struct {
	requests []domain.HintRequest
}

func (f *fakeHelper) ProvideHint(_ context.Context, req domain.HintRequest) (*domain.Hint, error) {
	f.requests = append(f.requests, req)
	return &domain.Hint{
		Hint:     "Consider the base case first.",
		HintType: string(domain.LevelForHelpCount(req.HelpCount)) + "_hint",
	}, nil
}

type fakeRunner struct {
	exec *domain.Execution
	run  *domain.TestRun
	err  error
}

func (f *fakeRunner) Run(_ context.Context, _ domain.Submission) (*domain.Execution, error) {
	return f.exec, f.err
}

func (f *fakeRunner) RunWithTests(_ context.Context, _ domain.Submission, _ []domain.TestCase) (*domain.TestRun, error) {
	return f.run, f.err
}

func sampleBreakdown() *domain.TaskBreakdown {
	return &domain.TaskBreakdown{
		ID:       uuid.New(),
		Overview: "Build a calculator.",
		Files: []domain.FileEntry{
			{
				Filename: "main.py",
				Tasks: []domain.Task{
					{ID: 1, Title: "Parse input", Description: "Read the expression", Concepts: []string{"strings"}},
				},
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func postJSON(t *testing.T, body any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

func TestAssignmentCreate(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	h := NewAssignmentHandler(&fakeParser{breakdown: breakdown}, store, nil, testLogger())

	req := httptest.NewRequest("POST", "/api/v1/assignments", postJSON(t, domain.Assignment{
		AssignmentText: "Build a calculator.",
		TargetLanguage: "python",
	}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201: %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.breakdowns[breakdown.ID]; !ok {
		t.Error("breakdown not stored")
	}
}

func TestAssignmentCreateQueuesTestGen(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	pub := &fakePublisher{}
	h := NewAssignmentHandler(&fakeParser{breakdown: breakdown}, store, pub, testLogger())

	req := httptest.NewRequest("POST", "/api/v1/assignments", postJSON(t, domain.Assignment{
		AssignmentText: "Build a calculator.",
		TargetLanguage: "python",
	}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if len(pub.jobs) != 1 {
		t.Fatalf("published jobs = %d; want 1", len(pub.jobs))
	}
	if pub.jobs[0].BreakdownID != breakdown.ID {
		t.Errorf("job breakdown = %s; want %s", pub.jobs[0].BreakdownID, breakdown.ID)
	}
	if pub.jobs[0].TargetLanguage != "python" {
		t.Errorf("job language = %q", pub.jobs[0].TargetLanguage)
	}
}

func TestAssignmentCreateParserError(t *testing.T) {
	h := NewAssignmentHandler(&fakeParser{err: domain.ErrUnsupportedLanguage}, newMemStore(), nil, testLogger())

	req := httptest.NewRequest("POST", "/api/v1/assignments", postJSON(t, domain.Assignment{
		AssignmentText: "x", TargetLanguage: "cobol",
	}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNSUPPORTED_LANGUAGE") {
		t.Errorf("body = %q; want UNSUPPORTED_LANGUAGE code", rec.Body.String())
	}
}

func TestAssignmentGet(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	store.breakdowns[breakdown.ID] = breakdown
	h := NewAssignmentHandler(&fakeParser{}, store, nil, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/assignments/"+breakdown.ID.String(), nil)
	req.SetPathValue("id", breakdown.ID.String())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/assignments/"+uuid.NewString(), nil)
	req.SetPathValue("id", uuid.NewString())
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d; want 404", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/assignments/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d; want 400", rec.Code)
	}
}

func TestScaffoldFileUnknownFilename(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	store.breakdowns[breakdown.ID] = breakdown
	h := NewScaffoldHandler(nil, store)

	req := httptest.NewRequest("POST", "/api/v1/assignments/"+breakdown.ID.String()+"/scaffold",
		postJSON(t, scaffoldFileRequest{Filename: "missing.py", ProgrammingLanguage: "python"}))
	req.SetPathValue("id", breakdown.ID.String())
	rec := httptest.NewRecorder()
	h.ScaffoldFile(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestStarterCodeValidation(t *testing.T) {
	h := NewScaffoldHandler(nil, newMemStore())

	req := httptest.NewRequest("POST", "/api/v1/starter-code",
		postJSON(t, domain.ScaffoldRequest{TaskDescription: "only description"}))
	rec := httptest.NewRecorder()
	h.StarterCode(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestHintEscalation(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	store.breakdowns[breakdown.ID] = breakdown
	helper := &fakeHelper{}
	h := NewHintHandler(helper, store, testLogger())

	ask := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST",
			"/api/v1/assignments/"+breakdown.ID.String()+"/tasks/1/hints",
			postJSON(t, hintRequestBody{Question: "Where do I start?"}))
		req.SetPathValue("id", breakdown.ID.String())
		req.SetPathValue("task_id", "1")
		rec := httptest.NewRecorder()
		h.RequestHint(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := ask(); rec.Code != http.StatusOK {
			t.Fatalf("hint %d status = %d: %s", i+1, rec.Code, rec.Body.String())
		}
	}

	if len(helper.requests) != 3 {
		t.Fatalf("helper calls = %d; want 3", len(helper.requests))
	}
	// Help counts passed to the helper climb with the session.
	for i, want := range []int{0, 1, 2} {
		if helper.requests[i].HelpCount != want {
			t.Errorf("request %d HelpCount = %d; want %d", i, helper.requests[i].HelpCount, want)
		}
	}
	// Task context is resolved server-side.
	if helper.requests[0].TaskDescription != "Read the expression" {
		t.Errorf("TaskDescription = %q", helper.requests[0].TaskDescription)
	}
	if len(helper.requests[2].PreviousHints) != 2 {
		t.Errorf("PreviousHints on third ask = %d; want 2", len(helper.requests[2].PreviousHints))
	}
}

func TestHintUnknownTask(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	store.breakdowns[breakdown.ID] = breakdown
	h := NewHintHandler(&fakeHelper{}, store, testLogger())

	req := httptest.NewRequest("POST",
		"/api/v1/assignments/"+breakdown.ID.String()+"/tasks/99/hints",
		postJSON(t, hintRequestBody{Question: "?"}))
	req.SetPathValue("id", breakdown.ID.String())
	req.SetPathValue("task_id", "99")
	rec := httptest.NewRecorder()
	h.RequestHint(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestRun(t *testing.T) {
	h := NewRunHandler(&fakeRunner{exec: &domain.Execution{Success: true, Output: "42\n"}}, newMemStore())

	req := httptest.NewRequest("POST", "/api/v1/runs",
		postJSON(t, domain.Submission{Code: "print(42)", Language: "python"}))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}

	var exec domain.Execution
	if err := json.NewDecoder(rec.Body).Decode(&exec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !exec.Success || exec.Output != "42\n" {
		t.Errorf("execution = %+v", exec)
	}
}

func TestRunValidation(t *testing.T) {
	h := NewRunHandler(&fakeRunner{}, newMemStore())

	req := httptest.NewRequest("POST", "/api/v1/runs",
		postJSON(t, domain.Submission{Code: "print(42)"}))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

func TestRunWithTestsNoTests(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	store.breakdowns[breakdown.ID] = breakdown
	h := NewRunHandler(&fakeRunner{}, store)

	req := httptest.NewRequest("POST",
		"/api/v1/assignments/"+breakdown.ID.String()+"/runs",
		postJSON(t, domain.Submission{Code: "x = 1", Language: "python"}))
	req.SetPathValue("id", breakdown.ID.String())
	rec := httptest.NewRecorder()
	h.RunWithTests(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "NO_TESTS") {
		t.Errorf("body = %q; want NO_TESTS code", rec.Body.String())
	}
}

func TestRunWithTests(t *testing.T) {
	store := newMemStore()
	breakdown := sampleBreakdown()
	breakdown.Tests = []domain.TestCase{
		{TestName: "adds", FunctionName: "add", InputData: "2, 3", ExpectedOutput: "5"},
	}
	store.breakdowns[breakdown.ID] = breakdown

	h := NewRunHandler(&fakeRunner{run: &domain.TestRun{
		Execution:   domain.Execution{Success: true},
		TestsPassed: 1,
	}}, store)

	req := httptest.NewRequest("POST",
		"/api/v1/assignments/"+breakdown.ID.String()+"/runs",
		postJSON(t, domain.Submission{Code: "def add(a, b): return a + b", Language: "python"}))
	req.SetPathValue("id", breakdown.ID.String())
	rec := httptest.NewRecorder()
	h.RunWithTests(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200: %s", rec.Code, rec.Body.String())
	}

	var run domain.TestRun
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if run.TestsPassed != 1 {
		t.Errorf("TestsPassed = %d; want 1", run.TestsPassed)
	}
}
