// Package units converts between raw vendor point values and semantic device values.
//
// All functions are pure and never fail past their boundary: a missing or
// malformed raw value is reported through the ok return, meaning the caller
// keeps whatever semantic value it had before.
package units

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	// byteMax is the top of the semantic brightness scale.
	byteMax = 255

	// percentMax is the top of the vendor percentage scale.
	percentMax = 100
)

// RawString normalises a raw vendor value to its string form.
// The vendor sends values as JSON strings, but numbers show up in writes echoed
// back by push notifications. nil yields "".
func RawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// ParseBool decodes a boolean point. Only "1" is true; anything else,
// including an absent value, is false.
func ParseBool(raw any) bool {
	return RawString(raw) == "1"
}

// FormatBool encodes a boolean point for writing.
func FormatBool(v bool) int {
	if v {
		return 1
	}
	return 0
}

// parseFloat parses a numeric raw value.
func parseFloat(raw any) (float64, bool) {
	s := RawString(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// PercentToByte converts a raw 0-100 percentage into a 0-255 brightness.
//
// Rounding is half-up: 50% -> round(127.5) = 128. Out of range input is clamped.
func PercentToByte(raw any) (uint8, bool) {
	p, ok := parseFloat(raw)
	if !ok {
		return 0, false
	}
	return percentToByte(p), true
}

func percentToByte(p float64) uint8 {
	b := math.Floor(p/percentMax*byteMax + 0.5)
	if b < 0 {
		b = 0
	}
	if b > byteMax {
		b = byteMax
	}
	return uint8(b)
}

// ByteToPercent converts a 0-255 brightness into the vendor's 0-100 percentage.
func ByteToPercent(b uint8) float64 {
	return float64(b) / byteMax * percentMax
}

// Kelvin parses a colour temperature point, already expressed in kelvin.
func Kelvin(raw any) (int, bool) {
	f, ok := parseFloat(raw)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Position parses a cover position or slat tilt point on the 0-100 scale.
// No byte conversion is applied.
func Position(raw any) (int, bool) {
	s := RawString(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, ok := parseFloat(raw)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// Temperature parses a climate temperature point in degrees Celsius.
func Temperature(raw any) (float64, bool) {
	return parseFloat(raw)
}
