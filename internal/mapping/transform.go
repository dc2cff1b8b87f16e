package mapping

import (
	"strings"

	"github.com/yourorg/enos-mapper/internal/models"
)

// conversion is a linear unit conversion y = scale*x + offset.
type conversion struct {
	scale  float64
	offset float64
}

// conversions holds the known unit conversion formulas, keyed by
// lower-cased "from|to".
var conversions = map[string]conversion{
	"degf|degc": {scale: 5.0 / 9.0, offset: -160.0 / 9.0},
	"degc|degf": {scale: 9.0 / 5.0, offset: 32},
	"k|degc":    {scale: 1, offset: -273.15},
	"degc|k":    {scale: 1, offset: 273.15},
	"kpa|pa":    {scale: 1000},
	"pa|kpa":    {scale: 0.001},
	"psi|kpa":   {scale: 6.89476},
	"bar|kpa":   {scale: 100},
	"m3/h|l/s":  {scale: 1.0 / 3.6},
	"l/s|m3/h":  {scale: 3.6},
	"gpm|l/s":   {scale: 0.0630902},
	"cfm|l/s":   {scale: 0.471947},
	"w|kw":      {scale: 0.001},
	"kw|w":      {scale: 1000},
}

func conversionFor(from, to string) (conversion, bool) {
	key := strings.ToLower(strings.TrimSpace(from)) + "|" + strings.ToLower(strings.TrimSpace(to))
	c, ok := conversions[key]
	return c, ok
}

// transformFor builds the unit-conversion transform a mapping requires, nil
// when units already agree or no formula is known.
func transformFor(fromUnit, toUnit string) *models.Transform {
	if fromUnit == "" || toUnit == "" || strings.EqualFold(fromUnit, toUnit) {
		return nil
	}
	c, ok := conversionFor(fromUnit, toUnit)
	if !ok {
		return nil
	}
	return &models.Transform{
		Type:     models.TransformUnitConversion,
		FromUnit: fromUnit,
		ToUnit:   toUnit,
		Scale:    c.scale,
		Offset:   c.offset,
	}
}
