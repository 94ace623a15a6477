package command

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/config"
)

const publishTimeout = 5 * time.Second

// Connect establishes the shared MQTT session used by both the command
// sink and the sensor source.
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID("heating-engine-" + uuid.New().String()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("url", cfg.URL).Msg("MQTT connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

// MQTTSink dispatches commands as MQTT publishes, using the device map
// to translate device ids into topics.
type MQTTSink struct {
	client  mqtt.Client
	devices *config.DeviceMap

	thermostats map[string]config.ThermostatDevice
	valves      map[string]config.ValveDevice
	switches    map[string]config.SwitchDevice
}

func NewMQTTSink(client mqtt.Client, devices *config.DeviceMap) *MQTTSink {
	s := &MQTTSink{
		client:      client,
		devices:     devices,
		thermostats: map[string]config.ThermostatDevice{},
		valves:      map[string]config.ValveDevice{},
		switches:    map[string]config.SwitchDevice{},
	}
	for _, area := range devices.Areas {
		for _, t := range area.Thermostats {
			s.thermostats[t.ID] = t
		}
		for _, v := range area.Valves {
			s.valves[v.ID] = v
		}
		for _, sw := range area.Switches {
			s.switches[sw.ID] = sw
		}
	}
	return s
}

func (s *MQTTSink) Dispatch(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case SetThermostat:
		return s.setThermostat(ctx, c)
	case SetValve:
		return s.setValve(ctx, c)
	case SetSwitch:
		return s.setSwitch(ctx, c)
	case SetGatewaySetpoint:
		return s.setGateway(ctx, c)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, cmd)
	}
}

func (s *MQTTSink) setThermostat(ctx context.Context, c SetThermostat) error {
	dev, ok := s.thermostats[c.DeviceID]
	if !ok {
		return fmt.Errorf("thermostat %s: %w", c.DeviceID, ErrUnknownID)
	}

	if !c.Heating {
		if dev.ModeTopic == "" {
			return fmt.Errorf("thermostat %s cannot turn off: %w", c.DeviceID, ErrUnsupported)
		}
		return s.publish(ctx, dev.ModeTopic, "off")
	}

	if dev.ModeTopic != "" {
		if err := s.publish(ctx, dev.ModeTopic, string(c.Mode)); err != nil {
			return err
		}
	}
	return s.publish(ctx, dev.TempTopic, fmt.Sprintf("%.1f", c.Temp))
}

func (s *MQTTSink) setValve(ctx context.Context, c SetValve) error {
	dev, ok := s.valves[c.DeviceID]
	if !ok {
		return fmt.Errorf("valve %s: %w", c.DeviceID, ErrUnknownID)
	}

	if !c.TemperatureOnly {
		if dev.PositionTopic == "" {
			return fmt.Errorf("valve %s has no position control: %w", c.DeviceID, ErrUnsupported)
		}
		position := "0"
		if c.Heating {
			position = "100"
		}
		return s.publish(ctx, dev.PositionTopic, position)
	}

	if dev.TempTopic == "" {
		return fmt.Errorf("valve %s has no temperature control: %w", c.DeviceID, ErrUnsupported)
	}
	return s.publish(ctx, dev.TempTopic, fmt.Sprintf("%.1f", c.Temp))
}

func (s *MQTTSink) setSwitch(ctx context.Context, c SetSwitch) error {
	dev, ok := s.switches[c.DeviceID]
	if !ok {
		return fmt.Errorf("switch %s: %w", c.DeviceID, ErrUnknownID)
	}
	payload := "OFF"
	if c.On {
		payload = "ON"
	}
	return s.publish(ctx, dev.CommandTopic, payload)
}

func (s *MQTTSink) setGateway(ctx context.Context, c SetGatewaySetpoint) error {
	return s.publish(ctx, s.devices.Gateway.SetpointTopic, fmt.Sprintf("%.1f", c.Temp))
}

func (s *MQTTSink) publish(ctx context.Context, topic, payload string) error {
	token := s.client.Publish(topic, 1, false, payload)

	select {
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w: %v", topic, ErrDevice, err)
	}

	log.Debug().Str("topic", topic).Str("payload", payload).Msg("Command published")
	return nil
}
