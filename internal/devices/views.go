package devices

import (
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/KevinKickass/GiraIoTCore/internal/units"
)

type ColorMode string

const (
	ColorModeOnOff      ColorMode = "onoff"
	ColorModeBrightness ColorMode = "brightness"
	ColorModeColorTemp  ColorMode = "color_temp"
)

// Kelvin range advertised for color-temperature lights.
const (
	MinColorTempKelvin = 2000
	MaxColorTempKelvin = 6535
)

const (
	HVACModeAuto = "auto"
	HVACModeHeat = "heat"
)

// View is what host adapters (REST, websocket, MQTT) see of a device.
// Exactly one of Light, Climate and Cover is set.
type View struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Kind    types.DeviceKind `json:"kind"`
	Light   *LightState      `json:"light,omitempty"`
	Climate *ClimateState    `json:"climate,omitempty"`
	Cover   *CoverState      `json:"cover,omitempty"`
}

// LightState. Nil pointers mean the capability is not supported.
type LightState struct {
	IsOn               bool      `json:"is_on"`
	Brightness         *uint8    `json:"brightness,omitempty"`
	ColorTempKelvin    *int      `json:"color_temp_kelvin,omitempty"`
	ColorMode          ColorMode `json:"color_mode"`
	MinColorTempKelvin int       `json:"min_color_temp_kelvin,omitempty"`
	MaxColorTempKelvin int       `json:"max_color_temp_kelvin,omitempty"`
}

// ClimateState. Temperatures are nil until a value has been seen.
type ClimateState struct {
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	HVACMode           string   `json:"hvac_mode"`
	HVACModes          []string `json:"hvac_modes"`
	Unit               string   `json:"temperature_unit"`
}

type CoverState struct {
	Position       *int `json:"position,omitempty"`
	Tilt           *int `json:"tilt,omitempty"`
	CanOpenClose   bool `json:"can_open_close"`
	CanStop        bool `json:"can_stop"`
	CanSetPosition bool `json:"can_set_position"`
	CanSetTilt     bool `json:"can_set_tilt"`
}

// LightColorMode picks the richest mode the light supports.
func LightColorMode(d *types.LightDevice) ColorMode {
	switch {
	case d.ColorTempPointID != "":
		return ColorModeColorTemp
	case d.DimPointID != "":
		return ColorModeBrightness
	default:
		return ColorModeOnOff
	}
}

// RefreshLight re-derives a light record from values. Points missing from
// values, or holding unparsable raw values, keep the previous semantic value.
func RefreshLight(d *types.LightDevice, values types.PointValues) *types.LightDevice {
	next := *d
	if raw, ok := values[d.OnOffPointID]; ok && d.OnOffPointID != "" {
		next.OnOffValue = units.ParseBool(raw)
	}
	if d.DimPointID != "" {
		if b, ok := units.PercentToByte(values[d.DimPointID]); ok {
			next.DimValue = b
		}
	}
	if d.ColorTempPointID != "" {
		if k, ok := units.Kelvin(values[d.ColorTempPointID]); ok {
			next.ColorTempValue = k
		}
	}
	return &next
}

// Brightness returns the light's brightness byte, or false when the light
// is not dimmable.
func Brightness(d *types.LightDevice) (uint8, bool) {
	if d.DimPointID == "" {
		return 0, false
	}
	return d.DimValue, true
}

func LightView(d *types.LightDevice) View {
	state := &LightState{
		IsOn:      d.OnOffValue,
		ColorMode: LightColorMode(d),
	}
	if b, ok := Brightness(d); ok {
		state.Brightness = &b
	}
	if d.ColorTempPointID != "" {
		k := d.ColorTempValue
		state.ColorTempKelvin = &k
		state.MinColorTempKelvin = MinColorTempKelvin
		state.MaxColorTempKelvin = MaxColorTempKelvin
	}
	return View{ID: d.ID, Name: d.Name, Kind: types.KindLight, Light: state}
}

// ClimateView derives the climate state. prev, which may be nil, supplies
// temperatures whose raw value is unavailable.
func ClimateView(d *types.ClimateDevice, values types.PointValues, prev *ClimateState) View {
	state := &ClimateState{
		HVACMode:  HVACModeAuto,
		HVACModes: []string{HVACModeAuto, HVACModeHeat},
		Unit:      "°C",
	}
	if prev != nil {
		state.CurrentTemperature = prev.CurrentTemperature
		state.TargetTemperature = prev.TargetTemperature
	}
	if d.CurrentTempPointID != "" {
		if t, ok := units.Temperature(values[d.CurrentTempPointID]); ok {
			state.CurrentTemperature = &t
		}
	}
	if d.SetpointPointID != "" {
		if t, ok := units.Temperature(values[d.SetpointPointID]); ok {
			state.TargetTemperature = &t
		}
	}
	return View{ID: d.ID, Name: d.Name, Kind: types.KindClimate, Climate: state}
}

// CoverView derives the cover state. prev, which may be nil, supplies
// positions whose raw value is unavailable.
func CoverView(d *types.CoverDevice, values types.PointValues, prev *CoverState) View {
	state := &CoverState{
		CanOpenClose:   d.UpDownPointID != "",
		CanStop:        d.StepUpDownPointID != "",
		CanSetPosition: d.PositionPointID != "",
		CanSetTilt:     d.SlatPositionPointID != "",
	}
	if prev != nil {
		state.Position = prev.Position
		state.Tilt = prev.Tilt
	}
	if d.PositionPointID != "" {
		if p, ok := units.Position(values[d.PositionPointID]); ok {
			state.Position = &p
		}
	}
	if d.SlatPositionPointID != "" {
		if p, ok := units.Position(values[d.SlatPositionPointID]); ok {
			state.Tilt = &p
		}
	}
	return View{ID: d.ID, Name: d.Name, Kind: types.KindCover, Cover: state}
}
