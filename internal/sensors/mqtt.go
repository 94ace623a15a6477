package sensors

import (
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/config"
	"github.com/thatsimonsguy/heating-engine/internal/model"
	"github.com/thatsimonsguy/heating-engine/internal/resolver"
)

// readings older than this are treated as unavailable
const maxReadingAge = 15 * time.Minute

type reading struct {
	value float64
	at    time.Time
}

// TargetChangeHandler receives device-originated target-temperature
// echoes. Wired to the debouncer, never called on the control loop.
type TargetChangeHandler func(areaID, deviceID string, temp float64)

// MQTTSource caches the last retained value of every subscribed topic
// and answers reads from that cache. It never blocks the control cycle
// on the broker.
type MQTTSource struct {
	client  mqtt.Client
	devices *config.DeviceMap

	mu       sync.RWMutex
	readings map[string]reading // keyed by "area:<id>", "outdoor", "boiler:flow", ...
	binaries map[string]bool    // keyed by sensor entity id
	flame    bool

	onTargetChange TargetChangeHandler
}

func NewMQTTSource(client mqtt.Client, devices *config.DeviceMap, onTargetChange TargetChangeHandler) *MQTTSource {
	return &MQTTSource{
		client:         client,
		devices:        devices,
		readings:       map[string]reading{},
		binaries:       map[string]bool{},
		onTargetChange: onTargetChange,
	}
}

// Subscribe wires every topic in the device map. Must be called once
// after the MQTT session is up.
func (s *MQTTSource) Subscribe() error {
	if s.devices.Outdoor.Topic != "" {
		if err := s.subscribeTemp(s.devices.Outdoor, "outdoor"); err != nil {
			return err
		}
	}

	gw := s.devices.Gateway
	for key, topic := range map[string]string{
		"boiler:flow":       gw.FlowTopic,
		"boiler:return":     gw.ReturnTopic,
		"boiler:modulation": gw.ModTopic,
	} {
		if topic == "" {
			continue
		}
		if err := s.subscribeTemp(config.SensorTopic{Topic: topic, Unit: "C"}, key); err != nil {
			return err
		}
	}
	if gw.FlameTopic != "" {
		if err := s.subscribe(gw.FlameTopic, func(_ mqtt.Client, msg mqtt.Message) {
			on := parseBinary(string(msg.Payload()))
			s.mu.Lock()
			s.flame = on
			s.mu.Unlock()
		}); err != nil {
			return err
		}
	}

	for areaID, area := range s.devices.Areas {
		if err := s.subscribeTemp(area.TemperatureSensor, "area:"+areaID); err != nil {
			return err
		}
		for entityID, st := range area.BinarySensors {
			entityID := entityID
			if err := s.subscribe(st.Topic, func(_ mqtt.Client, msg mqtt.Message) {
				on := parseBinary(string(msg.Payload()))
				s.mu.Lock()
				s.binaries[entityID] = on
				s.mu.Unlock()
			}); err != nil {
				return err
			}
		}
		for _, t := range area.Thermostats {
			if t.ReportTopic == "" {
				continue
			}
			areaID, dev := areaID, t
			if err := s.subscribe(t.ReportTopic, func(_ mqtt.Client, msg mqtt.Message) {
				v, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
				if err != nil {
					log.Warn().Str("topic", dev.ReportTopic).Str("payload", string(msg.Payload())).
						Msg("Non-numeric target temperature report")
					return
				}
				if s.onTargetChange != nil {
					s.onTargetChange(areaID, dev.ID, v)
				}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MQTTSource) subscribeTemp(st config.SensorTopic, key string) error {
	return s.subscribe(st.Topic, func(_ mqtt.Client, msg mqtt.Message) {
		v, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
		if err != nil {
			log.Warn().Str("topic", st.Topic).Str("payload", string(msg.Payload())).
				Msg("Non-numeric sensor payload, reading kept unknown")
			return
		}
		s.mu.Lock()
		s.readings[key] = reading{value: resolver.ToCelsius(v, st.Unit), at: time.Now()}
		s.mu.Unlock()
	})
}

func (s *MQTTSource) subscribe(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, 1, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	log.Debug().Str("topic", topic).Msg("Subscribed")
	return nil
}

func (s *MQTTSource) read(key string) (float64, error) {
	s.mu.RLock()
	r, ok := s.readings[key]
	s.mu.RUnlock()
	if !ok || time.Since(r.at) > maxReadingAge {
		return 0, ErrUnavailable
	}
	return r.value, nil
}

func (s *MQTTSource) AreaTemperature(areaID string) (float64, error) {
	return s.read("area:" + areaID)
}

func (s *MQTTSource) OutdoorTemperature() (float64, error) {
	return s.read("outdoor")
}

func (s *MQTTSource) BinaryState(entityID string) (bool, error) {
	s.mu.RLock()
	v, ok := s.binaries[entityID]
	s.mu.RUnlock()
	if !ok {
		return false, ErrUnavailable
	}
	return v, nil
}

func (s *MQTTSource) Boiler() (model.BoilerState, error) {
	flow, err := s.read("boiler:flow")
	if err != nil {
		return model.BoilerState{}, err
	}
	ret, err := s.read("boiler:return")
	if err != nil {
		return model.BoilerState{}, err
	}

	state := model.BoilerState{
		FlowTemp:          flow,
		ReturnTemp:        ret,
		ReportsModulation: s.devices.Gateway.ReportsModulation,
	}
	if mod, err := s.read("boiler:modulation"); err == nil {
		state.Modulation = mod
	}
	s.mu.RLock()
	state.FlameActive = s.flame
	s.mu.RUnlock()
	return state, nil
}

func parseBinary(payload string) bool {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "on", "open", "true", "1", "home", "detected":
		return true
	default:
		return false
	}
}
