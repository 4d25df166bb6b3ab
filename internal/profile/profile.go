// Package profile holds the declarative per-customer configuration: which
// rows to keep, which columns, how prices are marked up, how outputs are
// named and which pivot summary is built.
package profile

import (
	"errors"
	"fmt"

	"github.com/garyjia/billing-master/internal/dataset"
)

// ErrUnknownCustomer is returned for a customer with no profile
var ErrUnknownCustomer = errors.New("unknown customer")

// Aggregation is the function applied to the value field
type Aggregation string

// AggregationSum is the only aggregation the summaries use
const AggregationSum Aggregation = "Sum"

// Default sheet patterns shared by most profiles
const (
	DefaultDataSheet    = "{LABEL} Azure 사용량"
	DefaultPivotSheet   = "{LABEL} Pivot"
	DefaultSummarySheet = "{LABEL} Summary"
	DefaultStyle        = "PivotStyleLight20"
	WonFormat           = "₩#,##0"
)

// FieldFilter places a field in the page (filter) area, optionally pinned
// to a single value
type FieldFilter struct {
	Field string
	Page  string
}

// Pinned reports whether the filter selects one value
func (f FieldFilter) Pinned() bool {
	return f.Page != ""
}

// ValueField is the single aggregated field of a pivot
type ValueField struct {
	Source      string
	Label       string
	Aggregation Aggregation
}

// ChartSpec describes a clustered-column chart over the summary
type ChartSpec struct {
	Title     string
	Anchor    string
	MajorUnit float64
	Width     uint
	Height    uint
}

// PivotSpec describes one pivot table
type PivotSpec struct {
	Name         string
	Anchor       string
	Filters      []FieldFilter
	Rows         []string
	Columns      []string
	Value        ValueField
	Style        string
	NumberFormat string
	Chart        *ChartSpec
}

// Fields returns every source field the pivot refers to
func (p PivotSpec) Fields() []string {
	fields := make([]string, 0, len(p.Filters)+len(p.Rows)+len(p.Columns)+1)
	for _, f := range p.Filters {
		fields = append(fields, f.Field)
	}
	fields = append(fields, p.Rows...)
	fields = append(fields, p.Columns...)
	return append(fields, p.Value.Source)
}

// Validate checks the pivot is buildable
func (p PivotSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pivot name is required")
	}
	if len(p.Rows) == 0 && len(p.Columns) == 0 {
		return fmt.Errorf("pivot %s: at least one row or column field is required", p.Name)
	}
	if p.Value.Source == "" {
		return fmt.Errorf("pivot %s: value field is required", p.Name)
	}
	if p.Value.Aggregation != AggregationSum {
		return fmt.Errorf("pivot %s: unsupported aggregation %q", p.Name, p.Value.Aggregation)
	}
	return nil
}

// SumRule skips a partition when the sum of Column is at most Threshold
type SumRule struct {
	Column    string
	Threshold float64
}

// Group is one output of a fan-out profile
type Group struct {
	Key      string
	Label    string
	FileName string
	// PivotName names the group's pivot table; the profile pivot's name
	// when empty
	PivotName string
	Skip      *SumRule
}

// FanOut partitions the filtered rows and writes one workbook per group
type FanOut struct {
	Column          string
	Groups          []Group
	ContinueOnError bool
}

// Merge combines several exports into one workbook with several pivots
type Merge struct {
	MinSources    int
	SourceSheet   string
	LabelColumn   int
	DataSheet     string
	SummarySheet  string
	CombinedTitle string
	Combined      PivotSpec
	SourcesTitle  string
	TitleRow      int
	PerSource     PivotSpec
	SourceStride  int
}

// Profile is the full configuration for one customer
type Profile struct {
	Customer     string
	Filter       *dataset.Predicate
	Columns      *dataset.ColumnRange
	Transforms   []dataset.Transform
	DataSheet    string
	PivotSheet   string
	SummarySheet string
	FileName     string
	Pivot        PivotSpec
	FanOut       *FanOut
	Merge        *Merge
}

// Validate checks the profile is internally consistent
func (p *Profile) Validate() error {
	if p.Customer == "" {
		return fmt.Errorf("customer is required")
	}
	if p.Merge != nil {
		if p.Merge.MinSources < 2 {
			return fmt.Errorf("%s: merge needs at least two sources", p.Customer)
		}
		if err := p.Merge.Combined.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.Customer, err)
		}
		if err := p.Merge.PerSource.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p.Customer, err)
		}
		return nil
	}
	if err := p.Pivot.Validate(); err != nil {
		return fmt.Errorf("%s: %w", p.Customer, err)
	}
	if p.FanOut != nil && len(p.FanOut.Groups) == 0 {
		return fmt.Errorf("%s: fan-out without groups", p.Customer)
	}
	return nil
}

// Kind names the execution shape of a profile
func (p *Profile) Kind() string {
	switch {
	case p.Merge != nil:
		return "merge"
	case p.FanOut != nil:
		return "fan-out"
	default:
		return "single"
	}
}
