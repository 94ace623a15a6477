package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceMap binds area ids and sensor entities to MQTT topics. It lives
// in its own YAML file because it changes when hardware changes, not
// when tuning parameters do.
type DeviceMap struct {
	Gateway GatewayDevice          `yaml:"gateway"`
	Outdoor SensorTopic            `yaml:"outdoor"`
	Areas   map[string]AreaDevices `yaml:"areas"`
}

type GatewayDevice struct {
	ID            string `yaml:"id"`
	SetpointTopic string `yaml:"setpoint_topic"`
	FlowTopic     string `yaml:"flow_topic"`
	ReturnTopic   string `yaml:"return_topic"`
	ModTopic      string `yaml:"modulation_topic"`
	FlameTopic    string `yaml:"flame_topic"`
	// false for on/off-only gateways; enables PWM approximation
	ReportsModulation bool `yaml:"reports_modulation"`
}

type SensorTopic struct {
	Topic string `yaml:"topic"`
	// "C" or "F"; ingest converts to Celsius
	Unit string `yaml:"unit"`
}

type AreaDevices struct {
	TemperatureSensor SensorTopic             `yaml:"temperature_sensor"`
	Thermostats       []ThermostatDevice      `yaml:"thermostats"`
	Valves            []ValveDevice           `yaml:"valves"`
	Switches          []SwitchDevice          `yaml:"switches"`
	BinarySensors     map[string]SensorTopic  `yaml:"binary_sensors"` // window/presence entity id -> topic
}

type ThermostatDevice struct {
	ID          string `yaml:"id"`
	TempTopic   string `yaml:"temp_topic"`
	ModeTopic   string `yaml:"mode_topic"`   // empty when the device cannot change mode
	ReportTopic string `yaml:"report_topic"` // device-originated target temperature echoes
}

type ValveDevice struct {
	ID            string `yaml:"id"`
	PositionTopic string `yaml:"position_topic"` // empty when set-position is unsupported
	TempTopic     string `yaml:"temp_topic"`
}

type SwitchDevice struct {
	ID           string `yaml:"id"`
	CommandTopic string `yaml:"command_topic"`
}

func LoadDeviceMap(path string) (*DeviceMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device map: %w", err)
	}

	var dm DeviceMap
	if err := yaml.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("failed to parse device map: %w", err)
	}

	if dm.Gateway.SetpointTopic == "" {
		return nil, fmt.Errorf("device map has no gateway setpoint topic")
	}
	for id, area := range dm.Areas {
		if area.TemperatureSensor.Topic == "" {
			return nil, fmt.Errorf("area %q has no temperature sensor topic", id)
		}
	}
	return &dm, nil
}
