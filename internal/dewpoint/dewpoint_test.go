package dewpoint

import (
	"math"
	"strconv"
	"testing"
)

func reading(v, unit string) *Reading {
	return &Reading{Value: v, Unit: unit}
}

func TestCalculate_Example(t *testing.T) {
	got := Calculate(reading("25", UnitCelsius), reading("60", "%"), 1)
	if !got.Available {
		t.Fatalf("Calculate(25°C, 60%%) unavailable, want available")
	}
	if got.Value != 16.7 {
		t.Errorf("Value = %v, want 16.7", got.Value)
	}
	if got.Precision != 1 {
		t.Errorf("Precision = %d, want 1", got.Precision)
	}
	if got.Format() != "16.7" {
		t.Errorf("Format() = %q, want %q", got.Format(), "16.7")
	}
}

func TestCalculate_Precision(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		want      string
	}{
		{name: "zero digits", precision: 0, want: "17"},
		{name: "one digit", precision: 1, want: "16.7"},
		{name: "two digits", precision: 2, want: "16.68"},
		{name: "three digits", precision: 3, want: "16.684"},
		{name: "negative clamps to zero", precision: -2, want: "17"},
		{name: "large clamps to three", precision: 9, want: "16.684"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(reading("25", ""), reading("60", ""), tt.precision)
			if got.Format() != tt.want {
				t.Errorf("Format() = %q, want %q", got.Format(), tt.want)
			}
		})
	}
}

func TestCalculate_PrecisionDoesNotChangeComputation(t *testing.T) {
	fine := Calculate(reading("21.3", ""), reading("47.5", ""), 3)
	coarse := Calculate(reading("21.3", ""), reading("47.5", ""), 0)
	if math.Abs(fine.Value-coarse.Value) > 0.5 {
		t.Errorf("precision 3 = %v, precision 0 = %v; differ by more than rounding", fine.Value, coarse.Value)
	}
}

func TestCalculate_HumidityBounds(t *testing.T) {
	tests := []struct {
		name      string
		humidity  string
		available bool
	}{
		{name: "100 is inclusive", humidity: "100", available: true},
		{name: "just above zero", humidity: "0.0001", available: true},
		{name: "zero is exclusive", humidity: "0", available: false},
		{name: "negative", humidity: "-5", available: false},
		{name: "above 100", humidity: "100.0001", available: false},
		{name: "NaN", humidity: "NaN", available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(reading("20", ""), reading(tt.humidity, ""), 1)
			if got.Available != tt.available {
				t.Errorf("Available = %v, want %v", got.Available, tt.available)
			}
		})
	}
}

func TestCalculate_SaturatedAirEqualsTemperature(t *testing.T) {
	got := Calculate(reading("18.4", ""), reading("100", ""), 1)
	if !got.Available || got.Value != 18.4 {
		t.Errorf("Calculate(18.4, 100%%) = %+v, want 18.4", got)
	}
}

func TestCalculate_MissingSource(t *testing.T) {
	valid := reading("20", "")
	tests := []struct {
		name string
		temp *Reading
		hum  *Reading
	}{
		{name: "temperature absent", temp: nil, hum: reading("50", "")},
		{name: "humidity absent", temp: valid, hum: nil},
		{name: "both absent", temp: nil, hum: nil},
		{name: "temperature absent, humidity invalid", temp: nil, hum: reading("oops", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.temp, tt.hum, 1); got.Available {
				t.Errorf("Calculate() = %+v, want unavailable", got)
			}
		})
	}
}

func TestCalculate_NonNumericStates(t *testing.T) {
	for _, state := range []string{"unknown", "unavailable", "", "abc", "20°C"} {
		t.Run("temperature "+strconv.Quote(state), func(t *testing.T) {
			if got := Calculate(reading(state, ""), reading("50", ""), 1); got.Available {
				t.Errorf("Calculate() = %+v, want unavailable", got)
			}
		})
		t.Run("humidity "+strconv.Quote(state), func(t *testing.T) {
			if got := Calculate(reading("20", ""), reading(state, ""), 1); got.Available {
				t.Errorf("Calculate() = %+v, want unavailable", got)
			}
		})
	}
}

func TestCalculate_HexLiteralsRejected(t *testing.T) {
	for _, state := range []string{"0x19p0", "-0x1p4", "+0x19", " 0X19 ", "0x1.9p4"} {
		t.Run("temperature "+strconv.Quote(state), func(t *testing.T) {
			if got := Calculate(reading(state, ""), reading("50", ""), 1); got.Available {
				t.Errorf("Calculate() = %+v, want unavailable", got)
			}
		})
		t.Run("humidity "+strconv.Quote(state), func(t *testing.T) {
			if got := Calculate(reading("20", ""), reading(state, ""), 1); got.Available {
				t.Errorf("Calculate() = %+v, want unavailable", got)
			}
		})
	}

	// Leading zeros and an explicit sign are still decimal.
	got := Calculate(reading("+025", ""), reading("060", ""), 1)
	if !got.Available || got.Value != 16.7 {
		t.Errorf("Calculate(+025, 060) = %+v, want 16.7", got)
	}
}

func TestCalculate_SurroundingWhitespace(t *testing.T) {
	got := Calculate(reading(" 25 ", ""), reading("60\n", ""), 1)
	if !got.Available || got.Value != 16.7 {
		t.Errorf("Calculate() = %+v, want 16.7", got)
	}
}

func TestCalculate_Fahrenheit(t *testing.T) {
	f := Calculate(reading("100", UnitFahrenheit), reading("40", ""), 3)
	c := Calculate(reading("37.78", UnitCelsius), reading("40", ""), 3)
	if !f.Available || !c.Available {
		t.Fatalf("unavailable result: f=%+v c=%+v", f, c)
	}
	if math.Abs(f.Value-c.Value) > 0.02 {
		t.Errorf("100°F -> %v, 37.78°C -> %v; want equal within tolerance", f.Value, c.Value)
	}
}

func TestCalculate_UnknownUnitIsCelsius(t *testing.T) {
	for _, unit := range []string{"", UnitCelsius, "K", "F"} {
		got := Calculate(reading("25", unit), reading("60", ""), 1)
		if got.Value != 16.7 {
			t.Errorf("unit %q: Value = %v, want 16.7", unit, got.Value)
		}
	}
}

func TestCalculate_DivisionByZeroIsUnavailable(t *testing.T) {
	// b + t_c == 0
	if got := Calculate(reading("-237.7", ""), reading("50", ""), 1); got.Available {
		t.Errorf("t_c = -b: got %+v, want unavailable", got)
	}
	if got := Calculate(reading("Inf", ""), reading("50", ""), 1); got.Available {
		t.Errorf("t_c = +Inf: got %+v, want unavailable", got)
	}
}

func TestCalculate_DewPointNotAboveTemperature(t *testing.T) {
	for tc := -40.0; tc <= 60.0; tc += 2.5 {
		for h := 5.0; h <= 100.0; h += 5.0 {
			tStr := strconv.FormatFloat(tc, 'f', -1, 64)
			hStr := strconv.FormatFloat(h, 'f', -1, 64)
			got := Calculate(reading(tStr, ""), reading(hStr, ""), 3)
			if !got.Available {
				t.Fatalf("Calculate(%v, %v) unavailable", tc, h)
			}
			// Allow for the rounding step.
			if got.Value > tc+0.0005 {
				t.Errorf("Calculate(%v, %v) = %v, exceeds temperature", tc, h, got.Value)
			}
		}
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	temp, hum := reading("12.3", UnitFahrenheit), reading("81", "%")
	first := Calculate(temp, hum, 2)
	second := Calculate(temp, hum, 2)
	if first != second {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		digits int
		want   float64
	}{
		{in: 16.6923, digits: 1, want: 16.7},
		{in: 0.5, digits: 0, want: 0},
		{in: 1.5, digits: 0, want: 2},
		{in: 2.5, digits: 0, want: 2},
		{in: -3.14159, digits: 2, want: -3.14},
		{in: 2.675, digits: 2, want: 2.67},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.digits); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.digits, got, tt.want)
		}
	}
}

func TestResult_FormatUnavailable(t *testing.T) {
	if got := Unavailable.Format(); got != "" {
		t.Errorf("Unavailable.Format() = %q, want empty", got)
	}
}
