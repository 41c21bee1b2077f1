package units

import (
	"encoding/json"
	"math"
	"testing"
)

// ─── Boolean ───────────────────────────────────────────────────────

func TestParseBool(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want bool
	}{
		{"string one", "1", true},
		{"string zero", "0", false},
		{"empty", "", false},
		{"nil", nil, false},
		{"garbage", "on", false},
		{"json number one", float64(1), true},
		{"padded", " 1 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBool(tt.raw); got != tt.want {
				t.Errorf("ParseBool(%#v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatBool(t *testing.T) {
	if got := FormatBool(true); got != 1 {
		t.Errorf("FormatBool(true) = %d, want 1", got)
	}
	if got := FormatBool(false); got != 0 {
		t.Errorf("FormatBool(false) = %d, want 0", got)
	}
}

// ─── Percentage <-> byte ───────────────────────────────────────────

func TestPercentToByte(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		want   uint8
		wantOK bool
	}{
		{"zero", "0", 0, true},
		{"half rounds up", "50", 128, true},
		{"full", "100", 255, true},
		{"float string", "39.6", 101, true},
		{"above range clamps", "120", 255, true},
		{"negative clamps", "-3", 0, true},
		{"json number", json.Number("100"), 255, true},
		{"empty", "", 0, false},
		{"nil", nil, 0, false},
		{"garbage", "abc", 0, false},
		{"NaN", "NaN", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PercentToByte(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("PercentToByte(%#v) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("PercentToByte(%#v) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestByteToPercent(t *testing.T) {
	if got := ByteToPercent(255); got != 100 {
		t.Errorf("ByteToPercent(255) = %v, want 100", got)
	}
	if got := ByteToPercent(0); got != 0 {
		t.Errorf("ByteToPercent(0) = %v, want 0", got)
	}
}

func TestByteRoundTrip(t *testing.T) {
	for b := 0; b <= 255; b++ {
		got, ok := PercentToByte(ByteToPercent(uint8(b)))
		if !ok {
			t.Fatalf("round trip of %d not ok", b)
		}
		if diff := int(got) - b; diff < -1 || diff > 1 {
			t.Errorf("PercentToByte(ByteToPercent(%d)) = %d, off by %d", b, got, diff)
		}
	}
}

func TestPercentRoundTrip(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 10
		b, ok := PercentToByte(p)
		if !ok {
			t.Fatalf("PercentToByte(%v) not ok", p)
		}
		if diff := math.Abs(ByteToPercent(b) - p); diff > 0.4 {
			t.Errorf("ByteToPercent(PercentToByte(%v)) off by %v", p, diff)
		}
	}
}

// ─── Kelvin / position / temperature ───────────────────────────────

func TestKelvin(t *testing.T) {
	tests := []struct {
		raw    any
		want   int
		wantOK bool
	}{
		{"2700", 2700, true},
		{"6500.4", 6500, true},
		{float64(4000), 4000, true},
		{"", 0, false},
		{"warm", 0, false},
	}

	for _, tt := range tests {
		got, ok := Kelvin(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Kelvin(%#v) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		raw    any
		want   int
		wantOK bool
	}{
		{"0", 0, true},
		{"100", 100, true},
		{"42", 42, true},
		{"42.6", 43, true},
		{nil, 0, false},
		{"x", 0, false},
	}

	for _, tt := range tests {
		got, ok := Position(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Position(%#v) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTemperature(t *testing.T) {
	got, ok := Temperature("21.5")
	if !ok || got != 21.5 {
		t.Errorf("Temperature(21.5) = (%v, %v)", got, ok)
	}
	if _, ok := Temperature(""); ok {
		t.Error("Temperature(\"\") should be unavailable")
	}
}
