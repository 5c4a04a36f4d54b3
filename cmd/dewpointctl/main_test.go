package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCalc(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "celsius", args: []string{"25", "60"}},
		{name: "fahrenheit with precision", args: []string{"77", "60", "°F", "2"}},
		{name: "unavailable input is not an error", args: []string{"25", "0"}},
		{name: "missing humidity", args: []string{"25"}, wantErr: true},
		{name: "bad precision", args: []string{"25", "60", "°C", "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runCalc(tt.args); (err != nil) != tt.wantErr {
				t.Errorf("runCalc(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("entries:\n  - id: den\n    temperature_entity: sensor.den_t\n    humidity_entity: sensor.den_h\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("entries:\n  - id: den\n    temperature_entity: sensor.den_t\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runCheck([]string{good}); err != nil {
		t.Errorf("runCheck(good) = %v", err)
	}
	if err := runCheck([]string{bad}); err == nil {
		t.Error("runCheck(bad) = nil, want error")
	}
	if err := runCheck(nil); err == nil {
		t.Error("runCheck() = nil, want error")
	}
}
