package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceBounds(t *testing.T) {
	cases := []struct {
		name        string
		publicPrice float64
		importPrice float64
		wantMax     float64
	}{
		{name: "public listing only", publicPrice: 100, importPrice: 0, wantMax: 120},
		{name: "no reference", publicPrice: 0, importPrice: 0, wantMax: 100},
		{name: "import price higher", publicPrice: 10, importPrice: 12, wantMax: 15},
		{name: "public price higher", publicPrice: 40, importPrice: 25, wantMax: 48},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minPrice, maxPrice := PriceBounds(tc.publicPrice, tc.importPrice)
			assert.Zero(t, minPrice)
			assert.Equal(t, tc.wantMax, maxPrice)
		})
	}
}
