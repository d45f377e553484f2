package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	plans, err := parseCatalog([]byte(`
plans:
  - id: Plus
    name: Plus
    monthly_price: "15.00"
    annual_price: "180.00"
    sort_order: 1
  - id: clinic
    name: Clínica
    monthly_price: "99.90"
    annual_price: "999.00"
    currency: brl
`))
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "plus", plans[0].ID)
	assert.Equal(t, "15.00", plans[0].MonthlyPrice.StringFixed(2))
	assert.Equal(t, "BRL", plans[0].Currency)
	assert.Equal(t, "BRL", plans[1].Currency)
	assert.Equal(t, "999.00", plans[1].AnnualPrice.StringFixed(2))
}

func TestParseCatalog_Empty(t *testing.T) {
	plans, err := parseCatalog([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "plans:\n  - name: X\n    monthly_price: '1'\n    annual_price: '1'\n"},
		{"duplicate id", "plans:\n  - {id: a, name: A, monthly_price: '1', annual_price: '1'}\n  - {id: A, name: B, monthly_price: '1', annual_price: '1'}\n"},
		{"zero price", "plans:\n  - {id: a, name: A, monthly_price: '0', annual_price: '1'}\n"},
		{"sub-cent price", "plans:\n  - {id: a, name: A, monthly_price: '1.999', annual_price: '1'}\n"},
		{"not yaml", "plans: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
