package billing

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/dataset"
	"github.com/garyjia/billing-master/internal/profile"
	"github.com/garyjia/billing-master/internal/task"
)

// fanOut partitions the prepared rows and writes one report per declared
// group. Empty groups and groups whose skip rule holds produce nothing.
func (rc *runContext) fanOut() ([]string, error) {
	fo := rc.p.FanOut
	if rc.req.OutputDir == "" {
		return nil, fmt.Errorf("%w: %s writes several reports and needs an output directory", ErrNoDestination, rc.p.Customer)
	}

	if rc.req.Output != "" {
		rc.logger.Warn("Output path ignored for a multi-report profile",
			zap.String("output", rc.req.Output),
			zap.String("dir", rc.req.OutputDir))
	}

	table, err := rc.prepare()
	if err != nil {
		return nil, err
	}
	parts, err := dataset.Partition(table, fo.Column)
	if err != nil {
		return nil, err
	}

	var (
		outputs  []string
		failures []error
	)
	n := len(fo.Groups)
	for i, g := range fo.Groups {
		logger := rc.logger.With(zap.String("group", g.Label))

		part, ok := parts[g.Key]
		if !ok || part.Empty() {
			logger.Info("Group has no rows, skipping")
			continue
		}
		skip, err := shouldSkip(part, g.Skip)
		if err != nil {
			return outputs, fmt.Errorf("group %s: %w", g.Label, err)
		}
		if skip {
			logger.Info("Group skipped by rule",
				zap.String("column", g.Skip.Column),
				zap.Float64("threshold", g.Skip.Threshold))
			continue
		}

		spec := rc.p.Pivot
		if g.PivotName != "" {
			spec.Name = g.PivotName
		}
		dst, err := rc.inOutputDir(rc.format(g.FileName))
		if err == nil {
			step := 0
			_, err = rc.build(part, spec, dst, func(int) {
				step++
				rc.rep.Report(progressPrepared + (100-progressPrepared)*(i*3+step)/(n*3+1))
			})
		}
		if err != nil {
			if errors.Is(err, task.ErrCanceled) || !fo.ContinueOnError {
				return outputs, fmt.Errorf("group %s: %w", g.Label, err)
			}
			logger.Error("Group failed", zap.Error(err))
			failures = append(failures, fmt.Errorf("group %s: %w", g.Label, err))
			continue
		}
		outputs = append(outputs, dst)
	}

	if len(failures) > 0 {
		return outputs, errors.Join(failures...)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: every group of %s is empty or skipped", dataset.ErrNoMatchingData, rc.p.Customer)
	}
	return outputs, nil
}

func shouldSkip(part *dataset.Table, rule *profile.SumRule) (bool, error) {
	if rule == nil {
		return false, nil
	}
	sum, err := part.Sum(rule.Column)
	if err != nil {
		return false, err
	}
	return sum <= rule.Threshold, nil
}
