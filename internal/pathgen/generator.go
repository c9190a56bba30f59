// Package pathgen synthesizes price paths under a market regime.
package pathgen

import (
	"math"
	"math/rand"

	"btc-scenario-lab/internal/domain"
)

// PriceFloor is the lowest price a generated path may reach.
const PriceFloor = 100.0

// Regime parameters, as fractions of the running price per step.
const (
	bullDrift       = 0.001
	bullVolatility  = 0.002
	bearDrift       = -0.002
	bearVolatility  = 0.003
	sidewaysVol     = 0.005
	volatileVol     = 0.01
	volatileShock   = 0.05
	volatileShockPr = 0.05
)

// Source is a uniform random source over [0, 1).
// *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded Source.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Generate produces durationSec*SamplesPerSecond samples starting at startMs.
// Timestamps advance by SampleIntervalMs. Prices never fall below PriceFloor.
// Unknown regimes produce a flat path at the clamped initial price.
func Generate(regime domain.PriceRegime, initialPrice float64, durationSec int, startMs int64, src Source) []domain.PricePoint {
	steps := durationSec * domain.SamplesPerSecond
	if steps <= 0 {
		return nil
	}

	points := make([]domain.PricePoint, steps)
	price := initialPrice
	for i := 0; i < steps; i++ {
		price = math.Max(PriceFloor, price+Step(regime, price, src))
		points[i] = domain.PricePoint{
			TimestampMs: startMs + int64(i+1)*domain.SampleIntervalMs,
			Price:       price,
		}
	}
	return points
}

// Step returns the price delta for one step of the given regime.
func Step(regime domain.PriceRegime, price float64, src Source) float64 {
	switch regime {
	case domain.RegimeBull:
		return price * (bullDrift + draw(src)*bullVolatility)
	case domain.RegimeBear:
		return price * (bearDrift + draw(src)*bearVolatility)
	case domain.RegimeSideways:
		return price * draw(src) * sidewaysVol
	case domain.RegimeVolatile:
		shock := src.Float64() < volatileShockPr
		r := draw(src)
		if shock {
			return price * r * volatileShock
		}
		return price * r * volatileVol
	default:
		return 0
	}
}

// draw maps a uniform [0,1) value to [-1, 1).
func draw(src Source) float64 {
	return src.Float64()*2 - 1
}
