package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

const commandTimeout = 10 * time.Second

// MQTTClient is the broker surface the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Commands is implemented by devices.Commander.
type Commands interface {
	TurnOn(ctx context.Context, id string, opts devices.TurnOnOptions) error
	TurnOff(ctx context.Context, id string) error
	SetTemperature(ctx context.Context, id string, celsius float64) error
	OpenCover(ctx context.Context, id string) error
	CloseCover(ctx context.Context, id string) error
	StopCover(ctx context.Context, id string) error
	SetCoverPosition(ctx context.Context, id string, position int) error
	SetCoverTilt(ctx context.Context, id string, tilt int) error
}

// Command is the JSON payload accepted on <prefix>/command/<kind>/<id>.
type Command struct {
	Action          string   `json:"action"`
	Brightness      *uint8   `json:"brightness,omitempty"`
	ColorTempKelvin *int     `json:"color_temp_kelvin,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Position        *int     `json:"position,omitempty"`
	Tilt            *int     `json:"tilt,omitempty"`
}

var errBadCommand = errors.New("bad command")

// Bridge publishes retained views to <prefix>/state/<kind>/<id> and routes
// commands to the commander.
type Bridge struct {
	client   MQTTClient
	commands Commands
	prefix   string
	qos      byte
	logger   *zap.Logger
}

func NewBridge(client MQTTClient, commands Commands, prefix string, qos byte, logger *zap.Logger) *Bridge {
	return &Bridge{
		client:   client,
		commands: commands,
		prefix:   strings.TrimSuffix(prefix, "/"),
		qos:      qos,
		logger:   logger.With(zap.String("component", "mqtt_bridge")),
	}
}

// Start subscribes to the command topics.
func (b *Bridge) Start() error {
	topic := b.prefix + "/command/+/+"
	if err := b.client.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	b.logger.Info("MQTT bridge started", zap.String("prefix", b.prefix))
	return nil
}

func (b *Bridge) Stop() {
	b.client.Disconnect(quiesceMillis)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) StateTopic(kind types.DeviceKind, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", b.prefix, kind, id)
}

// PublishView publishes a retained view. Failures are logged only.
func (b *Bridge) PublishView(view devices.View) {
	payload, err := json.Marshal(view)
	if err != nil {
		b.logger.Error("Failed to marshal view", zap.String("device", view.ID), zap.Error(err))
		return
	}
	if err := b.client.Publish(b.StateTopic(view.Kind, view.ID), payload, b.qos, true); err != nil {
		b.logger.Warn("Failed to publish view", zap.String("device", view.ID), zap.Error(err))
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	kind, id, ok := b.parseCommandTopic(topic)
	if !ok {
		b.logger.Warn("Ignoring command on unexpected topic", zap.String("topic", topic))
		return
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("Ignoring malformed command", zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.dispatch(ctx, kind, id, cmd); err != nil {
		b.logger.Warn("Command failed",
			zap.String("device", id),
			zap.String("action", cmd.Action),
			zap.Error(err))
		return
	}
	b.logger.Debug("Command executed", zap.String("device", id), zap.String("action", cmd.Action))
}

func (b *Bridge) parseCommandTopic(topic string) (types.DeviceKind, string, bool) {
	rest, ok := strings.CutPrefix(topic, b.prefix+"/command/")
	if !ok {
		return "", "", false
	}
	kind, id, ok := strings.Cut(rest, "/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return types.DeviceKind(kind), id, true
}

func (b *Bridge) dispatch(ctx context.Context, kind types.DeviceKind, id string, cmd Command) error {
	switch kind {
	case types.KindLight:
		switch cmd.Action {
		case "turn_on":
			return b.commands.TurnOn(ctx, id, devices.TurnOnOptions{
				Brightness:      cmd.Brightness,
				ColorTempKelvin: cmd.ColorTempKelvin,
			})
		case "turn_off":
			return b.commands.TurnOff(ctx, id)
		}

	case types.KindClimate:
		if cmd.Action == "set_temperature" {
			if cmd.Temperature == nil {
				return fmt.Errorf("%w: temperature missing", errBadCommand)
			}
			return b.commands.SetTemperature(ctx, id, *cmd.Temperature)
		}

	case types.KindCover:
		switch cmd.Action {
		case "open":
			return b.commands.OpenCover(ctx, id)
		case "close":
			return b.commands.CloseCover(ctx, id)
		case "stop":
			return b.commands.StopCover(ctx, id)
		case "set_position":
			if cmd.Position == nil {
				return fmt.Errorf("%w: position missing", errBadCommand)
			}
			return b.commands.SetCoverPosition(ctx, id, *cmd.Position)
		case "set_tilt":
			if cmd.Tilt == nil {
				return fmt.Errorf("%w: tilt missing", errBadCommand)
			}
			return b.commands.SetCoverTilt(ctx, id, *cmd.Tilt)
		}
	}

	return fmt.Errorf("%w: %q not supported for %s", errBadCommand, cmd.Action, kind)
}
