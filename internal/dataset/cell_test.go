package dataset

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw      string
		isNumber bool
		number   float64
	}{
		{"12.5", true, 12.5},
		{" -3 ", true, -3},
		{"1e3", true, 1000},
		{"", false, 0},
		{"CustomerA", false, 0},
		{"NaN", false, 0},
		{"nan", false, 0},
		{"Inf", false, 0},
		{"-Infinity", false, 0},
		{"1e400", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := ParseCell(tt.raw)
			assert.Equal(t, tt.isNumber, c.IsNumber)
			if tt.isNumber {
				assert.Equal(t, tt.number, c.Number)
			} else {
				assert.Equal(t, tt.raw, c.Text)
			}
		})
	}
}

func TestScaleCell_NonFiniteTextUntouched(t *testing.T) {
	factor := decimal.RequireFromString("2")

	scaled := scaleCell(ParseCell("NaN"), factor)
	assert.False(t, scaled.IsNumber)
	assert.Equal(t, "NaN", scaled.Text)

	assert.Equal(t, 20.0, scaleCell(ParseCell("10"), factor).Number)
}
