package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Typed dispatch errors. The orchestrator decides fallback policy
// centrally by inspecting these; the sink never retries on its own.
var (
	ErrUnsupported = errors.New("command not supported by device")
	ErrTimeout     = errors.New("device command timed out")
	ErrDevice      = errors.New("device rejected command")
	ErrUnknownID   = errors.New("unknown device id")
)

// Command is one abstract actuator instruction produced by a control
// cycle. Commands are plain values so transitions can return them and
// tests can compare them.
type Command interface {
	Describe() string
}

type SetThermostat struct {
	DeviceID string
	Heating  bool
	Temp     float64
	Mode     model.HVACMode
}

func (c SetThermostat) Describe() string {
	return fmt.Sprintf("thermostat %s heating=%v temp=%.1f mode=%s", c.DeviceID, c.Heating, c.Temp, c.Mode)
}

type SetValve struct {
	DeviceID string
	Heating  bool
	Temp     float64
	// skip the position topic and drive the valve by temperature; set
	// by the fallback path when set-position is unsupported
	TemperatureOnly bool
}

func (c SetValve) Describe() string {
	return fmt.Sprintf("valve %s heating=%v temp=%.1f tempOnly=%v", c.DeviceID, c.Heating, c.Temp, c.TemperatureOnly)
}

type SetSwitch struct {
	DeviceID string
	On       bool
}

func (c SetSwitch) Describe() string {
	return fmt.Sprintf("switch %s on=%v", c.DeviceID, c.On)
}

type SetGatewaySetpoint struct {
	DeviceID string
	Temp     float64
}

func (c SetGatewaySetpoint) Describe() string {
	return fmt.Sprintf("gateway %s setpoint=%.1f", c.DeviceID, c.Temp)
}

// Sink executes abstract commands against real actuators.
type Sink interface {
	Dispatch(ctx context.Context, cmd Command) error
}
