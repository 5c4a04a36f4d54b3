// Package dewpoint computes the dew point from a temperature and a relative
// humidity reading using the Magnus approximation.
package dewpoint

import (
	"math"
	"strconv"
	"strings"
)

// Magnus coefficients. Changing them changes every published value.
const (
	magnusA = 17.27
	magnusB = 237.7
)

const (
	UnitCelsius    = "°C"
	UnitFahrenheit = "°F"
)

const (
	MinPrecision     = 0
	MaxPrecision     = 3
	DefaultPrecision = 1
)

// Reading is a snapshot of a source sensor state. Value is the raw state
// string as published by the source, Unit its unit_of_measurement (may be empty).
type Reading struct {
	Value string
	Unit  string
}

// Result is either an available dew point in °C rounded to Precision digits,
// or unavailable.
type Result struct {
	Available bool
	Value     float64
	Precision int
}

// Unavailable is the zero Result.
var Unavailable = Result{}

// Format renders the value with exactly Precision fraction digits.
// Unavailable results render as an empty string.
func (r Result) Format() string {
	if !r.Available {
		return ""
	}
	return strconv.FormatFloat(r.Value, 'f', r.Precision, 64)
}

// Calculate derives the dew point from temp and hum. A nil reading means the
// source has no known state. Every invalid input yields Unavailable.
func Calculate(temp, hum *Reading, precision int) Result {
	if temp == nil || hum == nil {
		return Unavailable
	}

	t, ok := parse(temp.Value)
	if !ok {
		return Unavailable
	}
	if temp.Unit == UnitFahrenheit {
		t = FahrenheitToCelsius(t)
	}

	h, ok := parse(hum.Value)
	if !ok {
		return Unavailable
	}
	if !(h > 0 && h <= 100) {
		return Unavailable
	}

	dew, ok := magnus(t, h)
	if !ok {
		return Unavailable
	}

	p := ClampPrecision(precision)
	return Result{
		Available: true,
		Value:     Round(dew, p),
		Precision: p,
	}
}

// FahrenheitToCelsius converts a °F temperature to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32.0) * 5.0 / 9.0
}

// ClampPrecision limits p to [MinPrecision, MaxPrecision].
func ClampPrecision(p int) int {
	if p < MinPrecision {
		return MinPrecision
	}
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}

// Round rounds v to digits fraction digits, half to even on the exact binary
// value. Non-finite values are returned unchanged.
func Round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', digits, 64), 64)
	if err != nil {
		return v
	}
	return out
}

func magnus(tc, rh float64) (float64, bool) {
	denom := magnusB + tc
	if denom == 0 {
		return 0, false
	}
	alpha := (magnusA*tc)/denom + math.Log(rh/100.0)
	if magnusA-alpha == 0 {
		return 0, false
	}
	dew := (magnusB * alpha) / (magnusA - alpha)
	if math.IsNaN(dew) || math.IsInf(dew, 0) {
		return 0, false
	}
	return dew, true
}

// parse accepts decimal notation only. Hex float literals are rejected.
func parse(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	digits := strings.TrimLeft(s, "+-")
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
