// Package billing runs a customer profile end to end: load, filter and
// project, write the intermediate workbook, build the pivot summary and
// move the finished report to its destination.
package billing

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/dataset"
	"github.com/garyjia/billing-master/internal/period"
	"github.com/garyjia/billing-master/internal/pivot"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/storage"
	"github.com/garyjia/billing-master/internal/task"
	"github.com/garyjia/billing-master/internal/workbook"
)

// Progress milestones
const (
	progressStarted  = 2
	progressLoaded   = 5
	progressScanned  = 50
	progressPrepared = 60
	progressBuilt    = 80
	progressSaved    = 90
	progressStored   = 95
)

// Request describes one run
type Request struct {
	Customer string
	Inputs   []string
	// Output is the destination file. When empty the profile's file name
	// is used inside OutputDir.
	Output string
	// OutputDir receives fan-out reports and default-named outputs
	OutputDir string
	// Sheet names the worksheet to read from xlsx inputs
	Sheet string
}

// Runner executes profiles
type Runner struct {
	profiles  *profile.Registry
	host      workbook.Host
	artifacts *storage.ArtifactStore
	now       func() time.Time
	logger    *zap.Logger
}

// NewRunner creates a runner
func NewRunner(profiles *profile.Registry, host workbook.Host, artifacts *storage.ArtifactStore, logger *zap.Logger) *Runner {
	return &Runner{
		profiles:  profiles,
		host:      host,
		artifacts: artifacts,
		now:       time.Now,
		logger:    logger,
	}
}

// Profiles returns the registry the runner dispatches on
func (r *Runner) Profiles() *profile.Registry {
	return r.profiles
}

// NewTask wraps a run in an idle background task
func (r *Runner) NewTask(req Request) *task.Task {
	return task.New(req.Customer, func(ctx context.Context, rep *task.Reporter) ([]string, error) {
		return r.Run(ctx, rep, req)
	}, r.logger)
}

// SuggestedName returns the default report file name for a customer
func (r *Runner) SuggestedName(customer string) (string, error) {
	p, err := r.profiles.Lookup(customer)
	if err != nil {
		return "", err
	}
	if p.FanOut != nil {
		return "", nil
	}
	now := r.now()
	return storage.SanitizeFileName(period.Previous(now).Format(p.FileName, now)), nil
}

// Run executes the customer's profile and returns the paths written
func (r *Runner) Run(ctx context.Context, rep *task.Reporter, req Request) ([]string, error) {
	if req.Customer == "" || len(req.Inputs) == 0 {
		return nil, ErrNoInput
	}
	p, err := r.profiles.Lookup(req.Customer)
	if err != nil {
		return nil, err
	}

	now := r.now()
	month := period.Previous(now)
	logger := r.logger.With(
		zap.String("customer", p.Customer),
		zap.String("kind", p.Kind()),
		zap.String("month", month.String()))
	logger.Info("Run started", zap.Strings("inputs", req.Inputs))

	rc := &runContext{
		Runner: r,
		ctx:    ctx,
		rep:    rep,
		req:    req,
		p:      p,
		month:  month,
		now:    now,
		logger: logger,
	}

	switch p.Kind() {
	case "merge":
		return rc.merge()
	case "fan-out":
		return rc.fanOut()
	default:
		return rc.single()
	}
}

type runContext struct {
	*Runner
	ctx    context.Context
	rep    *task.Reporter
	req    Request
	p      *profile.Profile
	month  period.Month
	now    time.Time
	logger *zap.Logger
}

func (rc *runContext) format(pattern string) string {
	return rc.month.Format(pattern, rc.now)
}

// prepare loads the inputs and applies the profile's filter, projection
// and transforms. Cancellation is checked after every scanned row.
func (rc *runContext) prepare() (*dataset.Table, error) {
	rc.rep.Report(progressStarted)

	table, err := rc.loadAll(rc.req.Inputs)
	if err != nil {
		return nil, err
	}
	rc.rep.Report(progressLoaded)

	filtered, err := dataset.FilterVisit(table, rc.p.Filter, rc.scanVisitor())
	if err != nil {
		return nil, err
	}
	if filtered.Empty() {
		return nil, fmt.Errorf("%w for %s", dataset.ErrNoMatchingData, rc.p.Customer)
	}

	projected, err := dataset.Project(filtered, rc.p.Columns)
	if err != nil {
		return nil, err
	}
	if err := dataset.ApplyAll(projected, rc.p.Transforms); err != nil {
		return nil, err
	}

	rc.logger.Info("Rows selected",
		zap.Int("scanned", table.Len()),
		zap.Int("kept", projected.Len()),
		zap.Int("columns", len(projected.Header)))
	rc.rep.Report(progressPrepared)
	return projected, nil
}

func (rc *runContext) scanVisitor() dataset.Visitor {
	return func(scanned, total int) error {
		if err := rc.rep.Check(); err != nil {
			return err
		}
		rc.rep.Report(progressLoaded + (progressScanned-progressLoaded)*scanned/total)
		return nil
	}
}

func (rc *runContext) loadAll(paths []string) (*dataset.Table, error) {
	var table *dataset.Table
	for _, path := range paths {
		t, err := dataset.Load(path, dataset.LoadOptions{Sheet: rc.req.Sheet})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
		}
		if table == nil {
			table = t
			continue
		}
		table.Concat(t)
	}
	return table, nil
}

// single runs one profile into one report
func (rc *runContext) single() ([]string, error) {
	table, err := rc.prepare()
	if err != nil {
		return nil, err
	}

	dst, err := rc.destination(rc.format(rc.p.FileName))
	if err != nil {
		return nil, err
	}

	out, err := rc.build(table, rc.p.Pivot, dst, func(p int) { rc.rep.Report(p) })
	if err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// destination resolves where a report named name goes
func (rc *runContext) destination(name string) (string, error) {
	if rc.req.Output != "" {
		return rc.req.Output, nil
	}
	return rc.inOutputDir(name)
}

// inOutputDir places a report named name in the output directory
func (rc *runContext) inOutputDir(name string) (string, error) {
	dir := rc.req.OutputDir
	if dir == "" {
		return "", ErrNoDestination
	}
	od := storage.NewOutputDir(dir, rc.logger)
	if err := od.Ensure(); err != nil {
		return "", err
	}
	return od.Join(name)
}

// build writes table into a fresh intermediate, builds the pivot summary
// and relocates the result to dst. The intermediate is discarded on every
// path except success and relocation failure.
func (rc *runContext) build(table *dataset.Table, spec profile.PivotSpec, dst string, report func(int)) (string, error) {
	if err := rc.rep.Check(); err != nil {
		return "", err
	}

	summary, err := pivot.Compute(table, spec)
	if err != nil {
		return "", fmt.Errorf("failed to summarize: %w", err)
	}

	tmp, err := rc.artifacts.NewPath(".xlsx")
	if err != nil {
		return "", err
	}
	keep := false
	defer func() {
		if !keep {
			rc.artifacts.Discard(tmp)
		}
	}()

	dataSheet := workbook.SheetName(rc.format(rc.p.DataSheet), "Data")
	pivotSheet := workbook.SheetName(rc.format(rc.p.PivotSheet), "Pivot")
	summarySheet := workbook.SheetName(rc.format(rc.p.SummarySheet), "Summary")

	if err := workbook.WriteTables(tmp, workbook.Sheet{Name: dataSheet, Table: table}); err != nil {
		return "", fmt.Errorf("failed to write intermediate workbook: %w", err)
	}

	err = rc.withSession(tmp, func(s workbook.Session) error {
		if err := s.EnsureSheet(pivotSheet); err != nil {
			return err
		}
		if err := s.AddPivot(pivotSheet, dataSheet, spec, summary); err != nil {
			return err
		}
		rng, err := s.WriteSummary(summarySheet, spec, summary)
		if err != nil {
			return err
		}
		if spec.Chart != nil {
			if err := s.AddChart(pivotSheet, *spec.Chart, rng); err != nil {
				return err
			}
		}
		report(progressBuilt)
		return nil
	})
	if err != nil {
		return "", err
	}
	report(progressSaved)

	if err := rc.artifacts.Relocate(tmp, dst); err != nil {
		keep = true
		rc.logger.Error("Report left at intermediate path", zap.String("path", tmp), zap.Error(err))
		return "", fmt.Errorf("%w; report kept at %s", err, tmp)
	}
	report(progressStored)

	rc.logger.Info("Report written",
		zap.String("path", dst),
		zap.Int("rows", table.Len()),
		zap.Float64("total", summary.GrandTotal))
	return dst, nil
}

// withSession opens the intermediate, runs fn, saves and always closes
func (rc *runContext) withSession(path string, fn func(workbook.Session) error) (err error) {
	s, err := rc.host.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := fn(s); err != nil {
		return err
	}
	return s.Save()
}
