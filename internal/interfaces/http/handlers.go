package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/billing"
	"github.com/garyjia/billing-master/internal/mail"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/task"
	"github.com/garyjia/billing-master/internal/worker"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	runner    Runner
	scheduler Scheduler
	composer  Composer
	history   History
	outputDir string
	baseCtx   context.Context
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(runner Runner, scheduler Scheduler, composer Composer, history History, outputDir string, logger *zap.Logger) *Handlers {
	return &Handlers{
		runner:    runner,
		scheduler: scheduler,
		composer:  composer,
		history:   history,
		outputDir: outputDir,
		baseCtx:   context.Background(),
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Busy      bool   `json:"busy"`
}

// CustomerResponse describes one selectable customer
type CustomerResponse struct {
	Customer      string `json:"customer"`
	Kind          string `json:"kind"`
	SuggestedName string `json:"suggested_name,omitempty"`
}

// RunRequest is the body of POST /api/runs
type RunRequest struct {
	Customer  string   `json:"customer"`
	Inputs    []string `json:"inputs"`
	Output    string   `json:"output"`
	OutputDir string   `json:"output_dir"`
	Sheet     string   `json:"sheet"`
}

// RunResponse reports a task's progress or outcome
type RunResponse struct {
	ID        string   `json:"id"`
	Customer  string   `json:"customer"`
	State     string   `json:"state"`
	Percent   int      `json:"percent"`
	Outputs   []string `json:"outputs,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	StartedAt string   `json:"started_at,omitempty"`
}

// MailRequest is the body of POST /api/mail
type MailRequest struct {
	Customer    string   `json:"customer"`
	Attachments []string `json:"attachments"`
}

// HistoryRequest represents query parameters for the history list
type HistoryRequest struct {
	Limit int `form:"limit"`
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	busy := false
	if cur := h.scheduler.Current(); cur != nil {
		busy = !cur.State().IsTerminal()
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Busy:      busy,
		},
	})
}

// ListCustomers handles GET /api/customers
func (h *Handlers) ListCustomers(c *gin.Context) {
	registry := h.runner.Profiles()

	customers := make([]CustomerResponse, 0, len(registry.Customers()))
	for _, name := range registry.Customers() {
		p, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		suggested, _ := h.runner.SuggestedName(name)
		customers = append(customers, CustomerResponse{
			Customer:      name,
			Kind:          p.Kind(),
			SuggestedName: suggested,
		})
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: customers})
}

// StartRun handles POST /api/runs
func (h *Handlers) StartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Customer == "" || len(req.Inputs) == 0 {
		fail(c, http.StatusBadRequest, billing.ErrNoInput.Error())
		return
	}
	if _, err := h.runner.Profiles().Lookup(req.Customer); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, profile.ErrUnknownCustomer) {
			status = http.StatusNotFound
		}
		fail(c, status, err.Error())
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = h.outputDir
	}
	t := h.runner.NewTask(billing.Request{
		Customer:  req.Customer,
		Inputs:    req.Inputs,
		Output:    req.Output,
		OutputDir: outputDir,
		Sheet:     req.Sheet,
	})

	if err := h.scheduler.Submit(h.baseCtx, t); err != nil {
		if errors.Is(err, worker.ErrBusy) {
			fail(c, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("Failed to start run", zap.String("customer", req.Customer), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to start run")
		return
	}

	c.JSON(http.StatusAccepted, Response{Success: true, Data: toRunResponse(t)})
}

// CurrentRun handles GET /api/runs/current
func (h *Handlers) CurrentRun(c *gin.Context) {
	t := h.scheduler.Current()
	if t == nil {
		fail(c, http.StatusNotFound, "no run submitted")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toRunResponse(t)})
}

// CancelRun handles POST /api/runs/current/cancel
func (h *Handlers) CancelRun(c *gin.Context) {
	if !h.scheduler.Cancel() {
		fail(c, http.StatusNotFound, "no active run")
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true, Data: toRunResponse(h.scheduler.Current())})
}

// ComposeMail handles POST /api/mail
func (h *Handlers) ComposeMail(c *gin.Context) {
	var req MailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Customer == "" {
		fail(c, http.StatusBadRequest, billing.ErrNoInput.Error())
		return
	}

	path, err := h.composer.Compose(c.Request.Context(), req.Customer, req.Attachments)
	switch {
	case err == nil:
	case errors.Is(err, mail.ErrUnknownTemplate):
		fail(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, mail.ErrNoAttachments), errors.Is(err, fs.ErrNotExist):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case path != "":
		// written, only the desktop hand-off failed
		h.logger.Warn("Draft not opened", zap.String("path", path), zap.Error(err))
	default:
		h.logger.Error("Failed to compose mail", zap.String("customer", req.Customer), zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to compose mail")
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{"draft": path}})
}

// ListHistory handles GET /api/history
func (h *Handlers) ListHistory(c *gin.Context) {
	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > maxHistoryLimit {
		req.Limit = defaultHistoryLimit
	}

	runs, err := h.history.List(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to retrieve history")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: runs})
}

func toRunResponse(t *task.Task) RunResponse {
	resp := RunResponse{
		ID:       t.ID,
		Customer: t.Name,
		State:    t.State().String(),
		Percent:  t.Percent(),
	}
	if started := t.StartedAt(); !started.IsZero() {
		resp.StartedAt = started.UTC().Format(time.RFC3339)
	}
	if t.State().IsTerminal() {
		res := t.Result()
		resp.Outputs = res.Outputs
		resp.Reason = res.Reason
	}
	return resp
}
