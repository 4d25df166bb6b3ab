package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Cell is a single value of a billing record, either text or a number
type Cell struct {
	Text     string
	Number   float64
	IsNumber bool
}

// Text builds a text cell
func Text(s string) Cell {
	return Cell{Text: s}
}

// Number builds a numeric cell
func Number(v float64) Cell {
	return Cell{Number: v, IsNumber: true}
}

// ParseCell infers the cell type from a raw value. Non-empty values that
// parse as a finite float become numbers; everything else, including
// "NaN" and "Inf", stays text.
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Text(raw)
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return Number(v)
	}
	return Text(raw)
}

// String renders the cell; numbers are formatted without trailing zeros
func (c Cell) String() string {
	if c.IsNumber {
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return c.Text
}

// Value returns the cell as a value suitable for a spreadsheet writer
func (c Cell) Value() interface{} {
	if c.IsNumber {
		return c.Number
	}
	return c.Text
}

// Float returns the numeric value, or 0 for text cells
func (c Cell) Float() float64 {
	if c.IsNumber {
		return c.Number
	}
	return 0
}
