package pricing

import (
	"math"
	"strings"
)

// baseUnits maps a declared package unit to its size in base units
// (grams for mass, milliliters for volume). Unknown units are absent on
// purpose: normalization is never guessed.
var baseUnits = map[string]float64{
	"g":      1,
	"gr":     1,
	"gram":   1,
	"grams":  1,
	"kg":     1000,
	"kilos":  1000,
	"ml":     1,
	"l":      1000,
	"lt":     1000,
	"litro":  1000,
	"litros": 1000,
}

// Normalize converts a package price into the price per 100 base units
// (100 g for mass, 100 ml for volume). It reports false when the declared
// size is non-positive or not a number, or when the unit is not recognized;
// such offers are excluded from ranking rather than treated as errors.
func Normalize(sizeValue float64, sizeUnit string, price float64) (float64, bool) {
	if sizeValue <= 0 || math.IsNaN(sizeValue) || math.IsInf(sizeValue, 0) {
		return 0, false
	}
	factor, ok := baseUnits[strings.ToLower(strings.TrimSpace(sizeUnit))]
	if !ok {
		return 0, false
	}
	per100 := price / (sizeValue * factor) * 100
	return round2(per100), true
}

// round2 rounds to currency scale, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
