package jobs_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/bastion-authz/bastion/jobs"
	_ "github.com/bastion-authz/bastion/testing"
)

type stubEnqueuer struct {
	days int
	err  error
}

func (s *stubEnqueuer) EnqueueRetentionSweep(ctx context.Context, retentionDays int) (*asynq.TaskInfo, error) {
	s.days = retentionDays
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "sweep-1", Queue: jobs.QueueDefault}, nil
}

func newJobsRouter(enq jobs.SweepEnqueuer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := jobs.NewHandler(nil, enq, 90, logger)
	r := chi.NewRouter()
	r.Route("/jobs", handler.MountRoutes)
	return r
}

func TestSweepEnqueuesRetentionTask(t *testing.T) {
	enq := &stubEnqueuer{}
	router := newJobsRouter(enq)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/sweep", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		TaskID string `json:"task_id"`
		Queue  string `json:"queue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TaskID != "sweep-1" || body.Queue != jobs.QueueDefault {
		t.Fatalf("unexpected response body: %+v", body)
	}
	if enq.days != 90 {
		t.Fatalf("expected configured retention days to be enqueued, got %d", enq.days)
	}
}

func TestSweepUnavailableWithoutClient(t *testing.T) {
	router := newJobsRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/sweep", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without an enqueue client, got %d", rec.Code)
	}
}
