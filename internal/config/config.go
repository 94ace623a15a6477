package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

type MQTTConfig struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

type Config struct {
	ConfigFile  string
	DevicesFile string
	DBPath      string
	LogLevel    zerolog.Level
	LogFile     string `json:"log_file"`

	CycleIntervalSeconds int `json:"cycle_interval_seconds"`
	StartupDelaySeconds  int `json:"startup_delay_seconds"`

	DefaultHysteresis       float64            `json:"default_hysteresis"`
	DefaultCurveCoefficient float64            `json:"default_curve_coefficient"`
	FrostProtectionTemp     float64            `json:"frost_protection_temp"`
	PresetTemps             map[string]float64 `json:"preset_temps"`

	PIDDeadband        float64 `json:"pid_deadband"`
	AutomaticGainValue float64 `json:"automatic_gain_value"`

	MinimumSetpoint          float64 `json:"minimum_setpoint"`
	SetpointAdjustmentFactor float64 `json:"setpoint_adjustment_factor"`

	PWMEnabled    bool    `json:"pwm_enabled"`
	MaxBoilerTemp float64 `json:"max_boiler_temp"`

	DebounceSeconds      int `json:"debounce_seconds"`
	OverrideGraceSeconds int `json:"override_grace_seconds"`

	MQTT   MQTTConfig   `json:"mqtt"`
	Influx InfluxConfig `json:"influx"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`

	// Seed data, written to the database on first run only.
	Areas     []model.Area     `json:"areas"`
	Schedules []model.Schedule `json:"schedules"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to engine config file")
	flag.StringVar(&cfg.DevicesFile, "devices-file", "devices.yaml", "Path to device/topic map")
	flag.StringVar(&cfg.DBPath, "db-path", "data/heating-engine.db", "Path to sqlite database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.CycleIntervalSeconds == 0 {
		cfg.CycleIntervalSeconds = 30
	}
	if cfg.StartupDelaySeconds == 0 {
		cfg.StartupDelaySeconds = 5
	}
	if cfg.DefaultHysteresis == 0 {
		cfg.DefaultHysteresis = 1.0
	}
	if cfg.DefaultCurveCoefficient == 0 {
		cfg.DefaultCurveCoefficient = 1.0
	}
	if cfg.FrostProtectionTemp == 0 {
		cfg.FrostProtectionTemp = 7.0
	}
	if cfg.PIDDeadband == 0 {
		cfg.PIDDeadband = 0.25
	}
	if cfg.AutomaticGainValue == 0 {
		cfg.AutomaticGainValue = 1.0
	}
	if cfg.MinimumSetpoint == 0 {
		cfg.MinimumSetpoint = 41.0
	}
	if cfg.SetpointAdjustmentFactor == 0 {
		cfg.SetpointAdjustmentFactor = 2.5
	}
	if cfg.MaxBoilerTemp == 0 {
		cfg.MaxBoilerTemp = 80.0
	}
	if cfg.DebounceSeconds == 0 {
		cfg.DebounceSeconds = 3
	}
	if cfg.OverrideGraceSeconds == 0 {
		cfg.OverrideGraceSeconds = 180
	}
	if cfg.MQTT.URL == "" {
		cfg.MQTT.URL = "tcp://127.0.0.1:1883"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "/var/log/heating-engine.log"
	}
}

var validPresets = map[string]bool{
	string(model.PresetNone): true, string(model.PresetHome): true,
	string(model.PresetAway): true, string(model.PresetEco): true,
	string(model.PresetComfort): true, string(model.PresetSleep): true,
	string(model.PresetActivity): true, string(model.PresetBoost): true,
}

var validSystems = map[model.HeatingSystem]bool{
	model.SystemRadiator:     true,
	model.SystemFloorHeating: true,
	model.SystemAirco:        true,
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.DefaultHysteresis <= 0 {
		problems = append(problems, "default_hysteresis must be positive")
	}
	if cfg.FrostProtectionTemp < 0 || cfg.FrostProtectionTemp >= 30 {
		problems = append(problems, "frost_protection_temp outside sane range [0,30)")
	}
	if cfg.MinimumSetpoint < 0 || cfg.MinimumSetpoint > 90 {
		problems = append(problems, "minimum_setpoint outside gateway protocol range [0,90]")
	}
	for name := range cfg.PresetTemps {
		if !validPresets[name] {
			problems = append(problems, fmt.Sprintf("unknown preset %q in preset_temps", name))
		}
	}

	seen := map[string]bool{}
	for _, a := range cfg.Areas {
		if a.ID == "" {
			problems = append(problems, "area with empty id")
			continue
		}
		if seen[a.ID] {
			problems = append(problems, fmt.Sprintf("duplicate area id %q", a.ID))
		}
		seen[a.ID] = true
		if !validSystems[a.System] {
			problems = append(problems, fmt.Sprintf("area %q has unknown heating system %q", a.ID, a.System))
		}
		if a.Hysteresis != nil && *a.Hysteresis <= 0 {
			problems = append(problems, fmt.Sprintf("area %q has non-positive hysteresis", a.ID))
		}
	}
	for _, s := range cfg.Schedules {
		if !seen[s.AreaID] {
			problems = append(problems, fmt.Sprintf("schedule references unknown area %q", s.AreaID))
		}
		if s.StartMinute < 0 || s.StartMinute >= 1440 || s.EndMinute < 0 || s.EndMinute > 1440 {
			problems = append(problems, fmt.Sprintf("schedule for area %q has out-of-range minutes", s.AreaID))
		}
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}
