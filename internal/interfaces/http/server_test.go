package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/billing"
	"github.com/garyjia/billing-master/internal/mail"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/repository"
	"github.com/garyjia/billing-master/internal/task"
	"github.com/garyjia/billing-master/internal/worker"
)

// fakeRunner builds tasks that block until release is closed
type fakeRunner struct {
	registry *profile.Registry
	release  chan struct{}
	requests []billing.Request
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{registry: profile.Default(), release: make(chan struct{})}
}

func (f *fakeRunner) NewTask(req billing.Request) *task.Task {
	f.requests = append(f.requests, req)
	return task.New(req.Customer, func(ctx context.Context, rep *task.Reporter) ([]string, error) {
		rep.Report(10)
		select {
		case <-f.release:
			return []string{req.OutputDir + "/report.xlsx"}, nil
		case <-ctx.Done():
			return nil, task.ErrCanceled
		}
	}, zap.NewNop())
}

func (f *fakeRunner) SuggestedName(customer string) (string, error) {
	return customer + ".xlsx", nil
}

func (f *fakeRunner) Profiles() *profile.Registry {
	return f.registry
}

type fakeComposer struct{}

func (fakeComposer) Compose(_ context.Context, customer string, attachments []string) (string, error) {
	switch customer {
	case "Nobody":
		return "", mail.ErrUnknownTemplate
	case "Broken":
		return "", errors.New("disk full")
	case "NoOpen":
		return "drafts/NoOpen.eml", errors.New("no mail handler")
	}
	if len(attachments) == 0 {
		return "", mail.ErrNoAttachments
	}
	return "drafts/" + customer + ".eml", nil
}

type fakeHistory struct {
	limit int
}

func (f *fakeHistory) List(_ context.Context, limit int) ([]*repository.Run, error) {
	f.limit = limit
	return []*repository.Run{{ID: "r1", Customer: "CustomerA", State: "COMPLETED"}}, nil
}

type fixture struct {
	server  *Server
	runner  *fakeRunner
	manager *worker.Manager
	history *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		runner:  newFakeRunner(),
		manager: worker.NewManager(zap.NewNop()),
		history: &fakeHistory{},
	}
	cfg := DefaultServerConfig()
	cfg.OutputDir = "out"
	f.server = NewServer(cfg, f.runner, f.manager, fakeComposer{}, f.history, zap.NewNop())
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	w, resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestListCustomers(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []CustomerResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, len(profile.Default().Customers()))

	kinds := map[string]string{}
	for _, c := range body.Data {
		kinds[c.Customer] = c.Kind
	}
	assert.Equal(t, "single", kinds["CustomerA"])
	assert.Equal(t, "merge", kinds["CustomerK"])
}

func TestStartRun_Validation(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/runs", RunRequest{Customer: "CustomerA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, billing.ErrNoInput.Error(), resp.Error)

	w, _ = f.do(t, http.MethodPost, "/api/runs", RunRequest{Customer: "Nobody", Inputs: []string{"a.csv"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/runs/current", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, f.runner.requests)
}

func TestStartRun_BusyThenComplete(t *testing.T) {
	f := newFixture(t)
	run := RunRequest{Customer: "CustomerA", Inputs: []string{"a.csv"}}

	w, _ := f.do(t, http.MethodPost, "/api/runs", run)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "out", f.runner.requests[0].OutputDir)

	w, resp := f.do(t, http.MethodPost, "/api/runs", run)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, worker.ErrBusy.Error(), resp.Error)

	close(f.runner.release)
	f.manager.Wait()

	w, _ = f.do(t, http.MethodGet, "/api/runs/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data RunResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "COMPLETED", body.Data.State)
	assert.Equal(t, 100, body.Data.Percent)
	assert.Equal(t, []string{"out/report.xlsx"}, body.Data.Outputs)
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/runs/current/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/runs", RunRequest{Customer: "CustomerB", Inputs: []string{"b.csv"}, OutputDir: "elsewhere"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "elsewhere", f.runner.requests[0].OutputDir)

	w, _ = f.do(t, http.MethodPost, "/api/runs/current/cancel", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	cur := f.manager.Current()
	select {
	case <-cur.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Equal(t, task.StateCanceled, cur.State())

	// idle again
	w, _ = f.do(t, http.MethodPost, "/api/runs/current/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComposeMail(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		req    MailRequest
		status int
	}{
		{"created", MailRequest{Customer: "CustomerA", Attachments: []string{"a.xlsx"}}, http.StatusCreated},
		{"no customer", MailRequest{}, http.StatusBadRequest},
		{"no attachments", MailRequest{Customer: "CustomerA"}, http.StatusBadRequest},
		{"unknown template", MailRequest{Customer: "Nobody", Attachments: []string{"a.xlsx"}}, http.StatusNotFound},
		{"failure", MailRequest{Customer: "Broken", Attachments: []string{"a.xlsx"}}, http.StatusInternalServerError},
		{"written but not opened", MailRequest{Customer: "NoOpen", Attachments: []string{"a.xlsx"}}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := f.do(t, http.MethodPost, "/api/mail", tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status == http.StatusCreated, resp.Success)
		})
	}
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 5, f.history.limit)

	_, _ = f.do(t, http.MethodGet, "/api/history?limit=1000", nil)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)

	w, _ = f.do(t, http.MethodGet, "/api/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	f := newFixture(t)
	f.server.config.Port = 0

	require.NoError(t, f.server.Start(context.Background()))
	assert.Error(t, f.server.Start(context.Background()))
	f.server.Stop()
	<-f.server.Done()
	// second stop is a no-op
	f.server.Stop()
	assert.Equal(t, "HTTPServer", f.server.Name())
}
