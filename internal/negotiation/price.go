package negotiation

import "math"

const (
	// DefaultMaxPrice bounds the slider when no reference price is known.
	DefaultMaxPrice = 100
	priceHeadroom   = 1.2
)

// PriceBounds returns the negotiable range for a resource: from zero up to 20% above the
// higher of the public listing price and the import price.
func PriceBounds(publicSellPrice, importPrice float64) (minPrice, maxPrice float64) {
	reference := math.Max(publicSellPrice, importPrice)
	if reference <= 0 {
		return 0, DefaultMaxPrice
	}
	return 0, math.Ceil(reference * priceHeadroom)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
