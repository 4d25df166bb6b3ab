package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()

	customers := r.Customers()
	assert.Equal(t, "CustomerA", customers[0])
	assert.Len(t, customers, 12)

	for _, c := range customers {
		p, err := r.Lookup(c)
		require.NoError(t, err, c)
		assert.NoError(t, p.Validate(), c)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := Default()

	t.Run("unknown customer", func(t *testing.T) {
		_, err := r.Lookup("CustomerZ")
		assert.ErrorIs(t, err, ErrUnknownCustomer)
	})

	t.Run("fan-out profile", func(t *testing.T) {
		p, err := r.Lookup("CustomerL")
		require.NoError(t, err)
		assert.Equal(t, "fan-out", p.Kind())
		require.Len(t, p.FanOut.Groups, 3)
		assert.NotNil(t, p.FanOut.Groups[2].Skip)
		for _, g := range p.FanOut.Groups {
			assert.Equal(t, g.Label+"_Pivot", g.PivotName)
		}
	})

	t.Run("chart size", func(t *testing.T) {
		p, err := r.Lookup("CustomerF")
		require.NoError(t, err)
		require.NotNil(t, p.Pivot.Chart)
		assert.Equal(t, uint(450), p.Pivot.Chart.Width)
		assert.Equal(t, uint(300), p.Pivot.Chart.Height)
	})

	t.Run("merge profile", func(t *testing.T) {
		p, err := r.Lookup("CustomerK")
		require.NoError(t, err)
		assert.Equal(t, "merge", p.Kind())
	})

	t.Run("pinned page values", func(t *testing.T) {
		p, err := r.Lookup("CustomerG")
		require.NoError(t, err)
		require.Len(t, p.Pivot.Filters, 3)
		assert.True(t, p.Pivot.Filters[2].Pinned())
		assert.Equal(t, "58075352", p.Pivot.Filters[2].Page)
	})
}

func TestNewRegistry_Rejects(t *testing.T) {
	valid := &Profile{
		Customer: "X",
		Pivot:    pivot("XPivot", "A3", []string{"Row"}, sumOf("Cost")),
	}

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewRegistry(valid, valid)
		assert.Error(t, err)
	})

	t.Run("missing value field", func(t *testing.T) {
		_, err := NewRegistry(&Profile{Customer: "Y", Pivot: PivotSpec{Name: "Y", Rows: []string{"Row"}}})
		assert.Error(t, err)
	})

	t.Run("non-sum aggregation", func(t *testing.T) {
		p := &Profile{Customer: "Z", Pivot: pivot("Z", "A3", []string{"Row"}, ValueField{Source: "Cost", Aggregation: "Average"})}
		_, err := NewRegistry(p)
		assert.Error(t, err)
	})
}

func TestPivotSpec_Fields(t *testing.T) {
	p, err := Default().Lookup("CustomerG")
	require.NoError(t, err)

	fields := p.Pivot.Fields()
	assert.Contains(t, fields, "날짜 (Date)")
	assert.Equal(t, "비용 (Cost)", fields[len(fields)-1])
}
