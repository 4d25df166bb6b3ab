package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrevious(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Month
	}{
		{"mid month", time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), Month{2026, time.September}},
		{"first day", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Month{2026, time.February}},
		{"january wraps year", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), Month{2025, time.December}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Previous(tt.now))
		})
	}
}

func TestMonth_Format(t *testing.T) {
	m := Month{Year: 2026, Month: time.September}
	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026년 9월", m.Label())
	assert.Equal(t, "2026-09", m.String())
	assert.Equal(t, "CustomerC 26년 09월 Azure 사용량.xlsx", m.Format("CustomerC {YY}년 {MM}월 Azure 사용량.xlsx", today))
	assert.Equal(t, "20261014_09월Billing.xlsx", m.Format("{TODAY}_{MM}월Billing.xlsx", today))
	assert.Equal(t, "2026년 9월 Pivot", m.Format("{LABEL} Pivot", today))
	assert.Equal(t, "CustomerB 9월 비용보고서.xlsx", m.Format("CustomerB {M}월 비용보고서.xlsx", today))
}
