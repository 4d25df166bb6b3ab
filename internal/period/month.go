// Package period computes the billing month and renders the labels used in
// file names, sheet names and mail subjects.
package period

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month being billed
type Month struct {
	Year  int
	Month time.Month
}

// Previous returns the calendar month before the one containing now
func Previous(now time.Time) Month {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 0, -1)
	return Month{Year: last.Year(), Month: last.Month()}
}

// Label returns the locale label, e.g. "2026년 9월"
func (m Month) Label() string {
	return fmt.Sprintf("%d년 %d월", m.Year, int(m.Month))
}

// String returns YYYY-MM
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Format substitutes month tokens in pattern.
//
// Supported tokens: {YYYY}, {YY}, {MM}, {M}, {LABEL} and {TODAY}, where
// {TODAY} is the run date as YYYYMMDD.
func (m Month) Format(pattern string, today time.Time) string {
	r := strings.NewReplacer(
		"{YYYY}", fmt.Sprintf("%04d", m.Year),
		"{YY}", fmt.Sprintf("%02d", m.Year%100),
		"{MM}", fmt.Sprintf("%02d", int(m.Month)),
		"{M}", fmt.Sprintf("%d", int(m.Month)),
		"{LABEL}", m.Label(),
		"{TODAY}", today.Format("20060102"),
	)
	return r.Replace(pattern)
}
