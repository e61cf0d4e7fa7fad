package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inferent/runway/auth"
	"github.com/inferent/runway/engine"
	"github.com/inferent/runway/job"
	"github.com/inferent/runway/service"
	"github.com/inferent/runway/store/memory"
	"github.com/inferent/runway/tune"
	"github.com/inferent/runway/worker"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	st := memory.New()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	gate := auth.NewKeyGate(st)
	eng := engine.New(st, logger)
	disp := worker.NewDispatcher(eng, logger)
	svc := service.New(gate, eng, disp, st, logger)

	runner := tune.NewRunner("true", logger)
	a := New(svc, st, runner, t.TempDir(), func() string { return "generated-key" },
		WithLogger(logger))

	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = disp.Stop(ctx)
	})

	return srv, st
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func fineTuneRequest(t *testing.T, url, apiKey, jobID, baseModel string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("api_key", apiKey)
	_ = mw.WriteField("job_id", jobID)
	_ = mw.WriteField("base_model", baseModel)
	fw, err := mw.CreateFormFile("dataset", "dataset.json")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`[{"instruction":"hello"}]`))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/fine-tune", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeRecord(t *testing.T, resp *http.Response) *job.Record {
	t.Helper()
	defer resp.Body.Close()

	var rec job.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return &rec
}

func TestFineTuneSubmit(t *testing.T) {
	srv, st := newTestServer(t)

	ctx := context.Background()
	if err := st.PutKey(ctx, "key-1", "dev@example.com"); err != nil {
		t.Fatal(err)
	}

	resp, err := http.DefaultClient.Do(fineTuneRequest(t, srv.URL, "key-1", "j1", "llama-7b"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	rec := decodeRecord(t, resp)
	if rec.JobID != "j1" || rec.Type != job.TypeFineTune {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != job.StatusStarting {
		t.Errorf("status = %s, want %s", rec.Status, job.StatusStarting)
	}
}

func TestFineTuneUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.DefaultClient.Do(fineTuneRequest(t, srv.URL, "no-such-key", "j1", "llama-7b"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestFineTuneMissingBaseModel(t *testing.T) {
	srv, st := newTestServer(t)
	_ = st.PutKey(context.Background(), "key-1", "dev@example.com")

	resp, err := http.DefaultClient.Do(fineTuneRequest(t, srv.URL, "key-1", "j1", ""))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFineTuneDuplicateActive(t *testing.T) {
	srv, st := newTestServer(t)
	_ = st.PutKey(context.Background(), "key-1", "dev@example.com")

	// Pre-seed a RUNNING record so the resubmit conflicts.
	_ = st.PutRecord(context.Background(), &job.Record{
		CallerID: "key-1", JobID: "j1", Type: job.TypeFineTune,
		Status: job.StatusRunning, TimeStarted: time.Now().UTC(),
		ErrorMessage: job.NoError,
	})

	resp, err := http.DefaultClient.Do(fineTuneRequest(t, srv.URL, "key-1", "j1", "llama-7b"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestJobStatus(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_ = st.PutKey(ctx, "key-1", "dev@example.com")
	_ = st.PutRecord(ctx, &job.Record{
		CallerID: "key-1", JobID: "j1", Type: job.TypeFineTune,
		Status: job.StatusCompleted, TimeStarted: time.Now().UTC(),
		ErrorMessage: job.NoError,
	})

	resp, err := http.Get(srv.URL + "/job-status/j1?api_key=key-1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	rec := decodeRecord(t, resp)
	if rec.Status != job.StatusCompleted {
		t.Errorf("job status = %s, want %s", rec.Status, job.StatusCompleted)
	}
}

func TestJobStatusForeignJob(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_ = st.PutKey(ctx, "key-1", "a@example.com")
	_ = st.PutKey(ctx, "key-2", "b@example.com")
	_ = st.PutRecord(ctx, &job.Record{
		CallerID: "key-1", JobID: "j1", Type: job.TypeFineTune,
		Status: job.StatusCompleted, TimeStarted: time.Now().UTC(),
		ErrorMessage: job.NoError,
	})

	resp, err := http.Get(srv.URL + "/job-status/j1?api_key=key-2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListAllJobs(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_ = st.PutKey(ctx, "key-1", "dev@example.com")
	for _, id := range []string{"j1", "j2"} {
		_ = st.PutRecord(ctx, &job.Record{
			CallerID: "key-1", JobID: id, Type: job.TypeFineTune,
			Status: job.StatusCompleted, TimeStarted: time.Now().UTC(),
			ErrorMessage: job.NoError,
		})
	}

	resp, err := http.Get(srv.URL + "/list-all-jobs?api_key=key-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var recs []*job.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(recs))
	}
}

func TestListAllJobsEmpty(t *testing.T) {
	srv, st := newTestServer(t)
	_ = st.PutKey(context.Background(), "key-1", "dev@example.com")

	resp, err := http.Get(srv.URL + "/list-all-jobs?api_key=key-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var recs []*job.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("jobs = %v, want empty array", recs)
	}
}

func TestRegister(t *testing.T) {
	srv, st := newTestServer(t)

	body := strings.NewReader(`{"email":"new@example.com"}`)
	resp, err := http.Post(srv.URL+"/register", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "generated-key" {
		t.Errorf("api_key = %q", got.APIKey)
	}

	ok, err := st.HasKey(context.Background(), got.APIKey)
	if err != nil || !ok {
		t.Errorf("registered key not stored: ok=%v err=%v", ok, err)
	}
}

func TestRegisterMissingEmail(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/register", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTrainNotImplemented(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/train", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	st := memory.New()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	gate := auth.NewKeyGate(st)
	eng := engine.New(st, logger)
	disp := worker.NewDispatcher(eng, logger)
	defer disp.Stop(context.Background())
	svc := service.New(gate, eng, disp, st, logger)

	a := New(svc, st, nil, t.TempDir(), func() string { return "k" },
		WithLogger(logger), WithRateLimit(1, 1))
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	// First request consumes the burst; the second must be throttled.
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestFineTuneWithoutRunner(t *testing.T) {
	st := memory.New()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	gate := auth.NewKeyGate(st)
	eng := engine.New(st, logger)
	disp := worker.NewDispatcher(eng, logger)
	defer disp.Stop(context.Background())
	svc := service.New(gate, eng, disp, st, logger)

	a := New(svc, st, nil, t.TempDir(), nil, WithLogger(logger))
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	_ = st.PutKey(context.Background(), "key-1", "dev@example.com")

	resp, err := http.DefaultClient.Do(fineTuneRequest(t, srv.URL, "key-1", "j1", "llama-7b"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	// No record was created for the refused submission.
	if _, err := st.GetRecord(context.Background(), "key-1", "j1"); err == nil {
		t.Error("record created despite missing trainer")
	}
}
