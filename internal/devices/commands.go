package devices

import (
	"context"
	"fmt"

	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/units"
	"go.uber.org/zap"
)

// Writer pushes one raw point value to the vendor device.
type Writer interface {
	WriteValue(ctx context.Context, pointID string, value any) error
}

// Up-Down and Step-Up-Down encodings.
const (
	coverUp   = 0
	coverDown = 1
	coverStep = 1
)

// TurnOnOptions are the optional parts of a turn-on command.
type TurnOnOptions struct {
	Brightness      *uint8 `json:"brightness,omitempty"`
	ColorTempKelvin *int   `json:"color_temp_kelvin,omitempty"`
}

// Commander translates semantic commands into vendor point writes. Writes are
// fire-and-forget; state changes arrive later through poll or push.
type Commander struct {
	manager *Manager
	writer  Writer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCommander(manager *Manager, writer Writer, logger *zap.Logger, m *metrics.Metrics) *Commander {
	return &Commander{
		manager: manager,
		writer:  writer,
		logger:  logger.With(zap.String("component", "commander")),
		metrics: m,
	}
}

func (c *Commander) write(ctx context.Context, deviceID, pointID string, value any) error {
	err := c.writer.WriteValue(ctx, pointID, value)
	c.metrics.Write(err)
	if err != nil {
		c.logger.Error("Write failed",
			zap.String("device", deviceID),
			zap.String("point", pointID),
			zap.Error(err))
		return fmt.Errorf("write %s: %w", pointID, err)
	}
	return nil
}

// TurnOn writes brightness and color temperature when given and supported,
// then switches the light on.
func (c *Commander) TurnOn(ctx context.Context, id string, opts TurnOnOptions) error {
	d, err := c.manager.light(id)
	if err != nil {
		return err
	}
	if d.OnOffPointID == "" {
		return fmt.Errorf("%w: %s has no on/off point", ErrUnsupported, id)
	}

	if opts.Brightness != nil && d.DimPointID != "" {
		if err := c.write(ctx, id, d.DimPointID, units.ByteToPercent(*opts.Brightness)); err != nil {
			return err
		}
	}
	if opts.ColorTempKelvin != nil && d.ColorTempPointID != "" {
		kelvin := min(max(*opts.ColorTempKelvin, MinColorTempKelvin), MaxColorTempKelvin)
		if err := c.write(ctx, id, d.ColorTempPointID, kelvin); err != nil {
			return err
		}
	}
	return c.write(ctx, id, d.OnOffPointID, units.FormatBool(true))
}

func (c *Commander) TurnOff(ctx context.Context, id string) error {
	d, err := c.manager.light(id)
	if err != nil {
		return err
	}
	if d.OnOffPointID == "" {
		return fmt.Errorf("%w: %s has no on/off point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.OnOffPointID, units.FormatBool(false))
}

// SetTemperature writes the target temperature in degrees Celsius.
func (c *Commander) SetTemperature(ctx context.Context, id string, celsius float64) error {
	d, err := c.manager.climate(id)
	if err != nil {
		return err
	}
	if d.SetpointPointID == "" {
		return fmt.Errorf("%w: %s has no set-point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.SetpointPointID, celsius)
}

func (c *Commander) OpenCover(ctx context.Context, id string) error {
	return c.upDown(ctx, id, coverUp)
}

func (c *Commander) CloseCover(ctx context.Context, id string) error {
	return c.upDown(ctx, id, coverDown)
}

func (c *Commander) upDown(ctx context.Context, id string, value int) error {
	d, err := c.manager.cover(id)
	if err != nil {
		return err
	}
	if d.UpDownPointID == "" {
		return fmt.Errorf("%w: %s has no up/down point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.UpDownPointID, value)
}

// StopCover stops a moving cover with a step command.
func (c *Commander) StopCover(ctx context.Context, id string) error {
	d, err := c.manager.cover(id)
	if err != nil {
		return err
	}
	if d.StepUpDownPointID == "" {
		return fmt.Errorf("%w: %s has no step point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.StepUpDownPointID, coverStep)
}

// SetCoverPosition writes a 0-100 position.
func (c *Commander) SetCoverPosition(ctx context.Context, id string, position int) error {
	d, err := c.manager.cover(id)
	if err != nil {
		return err
	}
	if d.PositionPointID == "" {
		return fmt.Errorf("%w: %s has no position point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.PositionPointID, clampPercent(position))
}

// SetCoverTilt writes a 0-100 slat position.
func (c *Commander) SetCoverTilt(ctx context.Context, id string, tilt int) error {
	d, err := c.manager.cover(id)
	if err != nil {
		return err
	}
	if d.SlatPositionPointID == "" {
		return fmt.Errorf("%w: %s has no slat position point", ErrUnsupported, id)
	}
	return c.write(ctx, id, d.SlatPositionPointID, clampPercent(tilt))
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}
