package types

// Trade is the vendor's categorical grouping of functions.
type Trade string

const (
	TradeLighting Trade = "lighting"
	TradeCover    Trade = "cover"
	TradeClimate  Trade = "climate"
)

// DataPoint is a single named, addressable value stream within a function.
type DataPoint struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"uid" yaml:"uid"`
}

// FunctionDescriptor describes one vendor function (e.g. one lamp).
// Immutable once parsed from the UI configuration document.
type FunctionDescriptor struct {
	ID          string      `json:"uid" yaml:"uid"`
	DisplayName string      `json:"displayName" yaml:"display_name"`
	Trade       Trade       `json:"trade,omitempty" yaml:"trade,omitempty"`
	DataPoints  []DataPoint `json:"dataPoints" yaml:"data_points"`
}

// PointID returns the id of the first data point with the given name,
// or "" when the function has no such capability.
func (f *FunctionDescriptor) PointID(name string) string {
	for _, dp := range f.DataPoints {
		if dp.Name == name {
			return dp.ID
		}
	}
	return ""
}

// HasPoint reports whether pointID belongs to this function.
func (f *FunctionDescriptor) HasPoint(pointID string) bool {
	for _, dp := range f.DataPoints {
		if dp.ID == pointID {
			return true
		}
	}
	return false
}

// Data point names recognised by the device model builder.
const (
	PointOnOff            = "OnOff"
	PointBrightness       = "Brightness"
	PointColorTemperature = "Color-Temperature"

	PointCurrent  = "Current"
	PointSetPoint = "Set-Point"
	PointMode     = "Mode"

	PointUpDown       = "Up-Down"
	PointStepUpDown   = "Step-Up-Down"
	PointPosition     = "Position"
	PointSlatPosition = "Slat-Position"
)

// DeviceKind tags the DeviceRecord variants.
type DeviceKind string

const (
	KindLight   DeviceKind = "light"
	KindClimate DeviceKind = "climate"
	KindCover   DeviceKind = "cover"
)

// DeviceRecord is the tagged variant over the per-trade device records.
// An empty point id means the capability is not supported.
type DeviceRecord interface {
	DeviceID() string
	DeviceName() string
	Kind() DeviceKind
	PointIDs() []string
}

type LightDevice struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	OnOffPointID     string `json:"on_off_point_id" yaml:"on_off_point_id"`
	OnOffValue       bool   `json:"on_off_value" yaml:"on_off_value"`
	DimPointID       string `json:"dim_point_id,omitempty" yaml:"dim_point_id,omitempty"`
	DimValue         uint8  `json:"dim_value" yaml:"dim_value"`
	ColorTempPointID string `json:"color_temp_point_id,omitempty" yaml:"color_temp_point_id,omitempty"`
	ColorTempValue   int    `json:"color_temp_value" yaml:"color_temp_value"`
}

func (d *LightDevice) DeviceID() string   { return d.ID }
func (d *LightDevice) DeviceName() string { return d.Name }
func (d *LightDevice) Kind() DeviceKind   { return KindLight }
func (d *LightDevice) PointIDs() []string {
	return nonEmpty(d.OnOffPointID, d.DimPointID, d.ColorTempPointID)
}

type ClimateDevice struct {
	ID                 string `json:"id" yaml:"id"`
	Name               string `json:"name" yaml:"name"`
	CurrentTempPointID string `json:"current_temp_point_id,omitempty" yaml:"current_temp_point_id,omitempty"`
	SetpointPointID    string `json:"setpoint_point_id,omitempty" yaml:"setpoint_point_id,omitempty"`
	ModePointID        string `json:"mode_point_id,omitempty" yaml:"mode_point_id,omitempty"`
}

func (d *ClimateDevice) DeviceID() string   { return d.ID }
func (d *ClimateDevice) DeviceName() string { return d.Name }
func (d *ClimateDevice) Kind() DeviceKind   { return KindClimate }
func (d *ClimateDevice) PointIDs() []string {
	return nonEmpty(d.CurrentTempPointID, d.SetpointPointID, d.ModePointID)
}

type CoverDevice struct {
	ID                  string `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	UpDownPointID       string `json:"up_down_point_id,omitempty" yaml:"up_down_point_id,omitempty"`
	StepUpDownPointID   string `json:"step_up_down_point_id,omitempty" yaml:"step_up_down_point_id,omitempty"`
	PositionPointID     string `json:"position_point_id,omitempty" yaml:"position_point_id,omitempty"`
	SlatPositionPointID string `json:"slat_position_point_id,omitempty" yaml:"slat_position_point_id,omitempty"`
}

func (d *CoverDevice) DeviceID() string   { return d.ID }
func (d *CoverDevice) DeviceName() string { return d.Name }
func (d *CoverDevice) Kind() DeviceKind   { return KindCover }
func (d *CoverDevice) PointIDs() []string {
	return nonEmpty(d.UpDownPointID, d.StepUpDownPointID, d.PositionPointID, d.SlatPositionPointID)
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// PointValues maps point id -> raw vendor value (string or number, unparsed).
type PointValues map[string]any

// ValueSnapshot maps function id -> point values. It is the single canonical state.
type ValueSnapshot map[string]PointValues

// Clone returns a deep copy of the snapshot.
func (s ValueSnapshot) Clone() ValueSnapshot {
	out := make(ValueSnapshot, len(s))
	for fid, values := range s {
		out[fid] = values.Clone()
	}
	return out
}

// Clone returns a copy of the point values.
func (v PointValues) Clone() PointValues {
	out := make(PointValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// TopologyDocument is the vendor UI configuration document as decoded JSON.
type TopologyDocument map[string]any
