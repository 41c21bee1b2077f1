// Package devices derives typed device records from indexed functions and
// maps them to host-facing views and vendor writes.
package devices

import (
	"github.com/KevinKickass/GiraIoTCore/internal/topology"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/KevinKickass/GiraIoTCore/internal/units"
)

// BuildLight resolves the light capabilities of fn and seeds the semantic
// values from values. Missing raw values fall back to false / 0.
func BuildLight(fn *types.FunctionDescriptor, values types.PointValues) *types.LightDevice {
	d := &types.LightDevice{ID: fn.ID, Name: fn.DisplayName}
	for _, dp := range fn.DataPoints {
		switch dp.Name {
		case types.PointOnOff:
			d.OnOffPointID = dp.ID
		case types.PointBrightness:
			d.DimPointID = dp.ID
		case types.PointColorTemperature:
			d.ColorTempPointID = dp.ID
		}
	}

	if d.OnOffPointID != "" {
		d.OnOffValue = units.ParseBool(values[d.OnOffPointID])
	}
	if d.DimPointID != "" {
		if b, ok := units.PercentToByte(values[d.DimPointID]); ok {
			d.DimValue = b
		}
	}
	if d.ColorTempPointID != "" {
		if k, ok := units.Kelvin(values[d.ColorTempPointID]); ok {
			d.ColorTempValue = k
		}
	}
	return d
}

func BuildClimate(fn *types.FunctionDescriptor) *types.ClimateDevice {
	d := &types.ClimateDevice{ID: fn.ID, Name: fn.DisplayName}
	for _, dp := range fn.DataPoints {
		switch dp.Name {
		case types.PointCurrent:
			d.CurrentTempPointID = dp.ID
		case types.PointSetPoint:
			d.SetpointPointID = dp.ID
		case types.PointMode:
			d.ModePointID = dp.ID
		}
	}
	return d
}

func BuildCover(fn *types.FunctionDescriptor) *types.CoverDevice {
	d := &types.CoverDevice{ID: fn.ID, Name: fn.DisplayName}
	for _, dp := range fn.DataPoints {
		switch dp.Name {
		case types.PointUpDown:
			d.UpDownPointID = dp.ID
		case types.PointStepUpDown:
			d.StepUpDownPointID = dp.ID
		case types.PointPosition:
			d.PositionPointID = dp.ID
		case types.PointSlatPosition:
			d.SlatPositionPointID = dp.ID
		}
	}
	return d
}

// Build creates one record per function of the lighting, climate and cover
// trade groups, in that order.
func Build(idx *topology.Index, seed types.ValueSnapshot) []types.DeviceRecord {
	records := make([]types.DeviceRecord, 0, len(idx.FunctionsByID))

	for _, fn := range idx.Functions(types.TradeLighting) {
		records = append(records, BuildLight(fn, seed[fn.ID]))
	}
	for _, fn := range idx.Functions(types.TradeClimate) {
		records = append(records, BuildClimate(fn))
	}
	for _, fn := range idx.Functions(types.TradeCover) {
		records = append(records, BuildCover(fn))
	}

	return records
}
