package workbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSheetName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CustomerK", "CustomerK"},
		{"a/b:c*d?e[f]g\\h", "abcdefgh"},
		{"'quoted'", "quoted"},
		{"   ", "fallback"},
		{strings.Repeat("가", 40), strings.Repeat("가", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SheetName(tt.in, "fallback"), tt.in)
	}
}

func TestUniqueSheetNames(t *testing.T) {
	got := UniqueSheetNames([]string{"Usage", "usage", "", "Data"}, "Data")
	assert.Equal(t, []string{"Usage", "usage (2)", "Sheet3", "Data (2)"}, got)

	long := strings.Repeat("x", 31)
	got = UniqueSheetNames([]string{long, long})
	assert.Equal(t, long, got[0])
	assert.Equal(t, strings.Repeat("x", 27)+" (2)", got[1])
}
