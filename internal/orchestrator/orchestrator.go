package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/db"
	"github.com/thatsimonsguy/heating-engine/internal/command"
	"github.com/thatsimonsguy/heating-engine/internal/config"
	"github.com/thatsimonsguy/heating-engine/internal/datadog"
	"github.com/thatsimonsguy/heating-engine/internal/gateway"
	"github.com/thatsimonsguy/heating-engine/internal/heatingcurve"
	"github.com/thatsimonsguy/heating-engine/internal/history"
	"github.com/thatsimonsguy/heating-engine/internal/hysteresis"
	"github.com/thatsimonsguy/heating-engine/internal/minsetpoint"
	"github.com/thatsimonsguy/heating-engine/internal/model"
	"github.com/thatsimonsguy/heating-engine/internal/pid"
	"github.com/thatsimonsguy/heating-engine/internal/resolver"
	"github.com/thatsimonsguy/heating-engine/internal/sensors"
)

// Lowest flow setpoint the plant may be asked for while heating.
// Candidates are floor-clamped here before the boiler-side guard.
var minSafeSetpoint = map[model.HeatingSystem]float64{
	model.SystemRadiator:     41.0,
	model.SystemFloorHeating: 25.0,
}

// areaRuntime is the per-area controller state, owned exclusively by
// the orchestrator goroutine. The event-driven side never touches it;
// confirmed overrides arrive as pending messages consumed at the top
// of the next cycle.
type areaRuntime struct {
	curve *heatingcurve.Model
	pid   *pid.Controller
	guard *minsetpoint.Guard

	state model.AreaState

	// last boiler candidate while heating, carried through cycles that
	// cannot produce a fresh one
	lastCandidate *gateway.Candidate

	lastSentTarget float64
	targetSent     bool

	presenceAway bool
}

type Orchestrator struct {
	cfg      *config.Config
	devices  *config.DeviceMap
	conn     *sqlx.DB
	source   sensors.Source
	sink     command.Sink
	resolver *resolver.Resolver
	agg      *gateway.Aggregator
	recorder *history.Recorder

	// snapshot read by the override detector off the control goroutine,
	// plus the confirmed-override mailbox the control loop drains
	mu            sync.RWMutex
	areas         []*model.Area
	schedules     []model.Schedule
	pendingManual map[string]bool

	runtime map[string]*areaRuntime
	kick    chan struct{}
}

func New(cfg *config.Config, devices *config.DeviceMap, conn *sqlx.DB, source sensors.Source, sink command.Sink, recorder *history.Recorder) *Orchestrator {
	presetDefaults := map[model.Preset]float64{}
	for name, temp := range cfg.PresetTemps {
		presetDefaults[model.Preset(name)] = temp
	}

	return &Orchestrator{
		cfg:     cfg,
		devices: devices,
		conn:    conn,
		source:  source,
		sink:    sink,
		resolver: &resolver.Resolver{
			FrostTemp:      cfg.FrostProtectionTemp,
			PresetDefaults: presetDefaults,
		},
		agg:           gateway.New(cfg.PWMEnabled, devices.Gateway.ReportsModulation, cfg.MaxBoilerTemp),
		recorder:      recorder,
		pendingManual: map[string]bool{},
		runtime:       map[string]*areaRuntime{},
		kick:          make(chan struct{}, 1),
	}
}

// SetSource installs the sensor source. Wiring is two-phase because
// the source's event callbacks lead back to this orchestrator through
// the override detector. Must be called before Run.
func (o *Orchestrator) SetSource(source sensors.Source) {
	o.source = source
}

// Kick requests an out-of-band cycle (confirmed manual override, area
// enable/disable). Non-blocking; a pending kick is enough.
func (o *Orchestrator) Kick() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Run drives the periodic control cycle until ctx is cancelled. One
// cycle runs shortly after startup so the building is not left
// uncontrolled for a full interval.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Info().
		Int("interval_seconds", o.cfg.CycleIntervalSeconds).
		Msg("Starting control cycle orchestrator")

	startup := time.NewTimer(time.Duration(o.cfg.StartupDelaySeconds) * time.Second)
	defer startup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-startup.C:
		o.runCycle(ctx, time.Now())
	}

	ticker := time.NewTicker(time.Duration(o.cfg.CycleIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Control cycle orchestrator stopped")
			return
		case <-ticker.C:
			o.runCycle(ctx, time.Now())
		case <-o.kick:
			o.runCycle(ctx, time.Now())
		}
	}
}

// runCycle processes every area independently, then aggregates all
// candidates of this cycle into one boiler command. A failing area
// never aborts the cycle for the others.
func (o *Orchestrator) runCycle(ctx context.Context, now time.Time) {
	areas, schedules, err := o.loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load area configuration, reusing last snapshot")
		o.mu.RLock()
		areas, schedules = o.areas, o.schedules
		o.mu.RUnlock()
		if areas == nil {
			return
		}
	}

	// drain confirmed overrides; each one overlays exactly this cycle
	o.mu.Lock()
	manual := o.pendingManual
	o.pendingManual = map[string]bool{}
	o.mu.Unlock()

	boiler, boilerErr := o.source.Boiler()
	if boilerErr != nil {
		log.Debug().Err(boilerErr).Msg("Boiler telemetry unavailable this cycle")
	}

	var candidates []gateway.Candidate

	for _, area := range areas {
		candidate, err := o.processArea(ctx, area, schedules, boiler, boilerErr == nil, manual[area.ID], now)
		if err != nil {
			log.Error().Err(err).Str("area", area.ID).Msg("Area processing failed, cycle continues")
			continue
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	setpoint := o.agg.Aggregate(candidates)
	o.dispatch(ctx, command.SetGatewaySetpoint{DeviceID: o.devices.Gateway.ID, Temp: setpoint})

	datadog.Gauge("boiler.setpoint", setpoint)
	o.recorder.RecordBoiler(setpoint, len(candidates))

	o.observeAutotune(areas, setpoint, now)
}

func (o *Orchestrator) loadConfig() ([]*model.Area, []model.Schedule, error) {
	areas, err := db.GetAreas(o.conn)
	if err != nil {
		return nil, nil, err
	}
	schedules, err := db.GetSchedules(o.conn)
	if err != nil {
		return nil, nil, err
	}

	o.mu.Lock()
	o.areas = areas
	o.schedules = schedules
	o.mu.Unlock()
	return areas, schedules, nil
}

func (o *Orchestrator) runtimeFor(area *model.Area) *areaRuntime {
	rt, ok := o.runtime[area.ID]
	if !ok {
		rt = &areaRuntime{
			curve: heatingcurve.New(area.System, area.Coefficient(o.cfg.DefaultCurveCoefficient)),
			pid: pid.New(area.ID, area.System, o.cfg.PIDDeadband, area.AutomaticGains,
				o.cfg.AutomaticGainValue, pid.Gains{Kp: area.Kp, Ki: area.Ki, Kd: area.Kd}),
			guard: minsetpoint.New(o.cfg.MinimumSetpoint, o.cfg.SetpointAdjustmentFactor),
			state: model.StateIdle,
		}
		o.runtime[area.ID] = rt
	}
	return rt
}

func (o *Orchestrator) processArea(ctx context.Context, area *model.Area, schedules []model.Schedule, boiler model.BoilerState, boilerOK bool, manualOverlay bool, now time.Time) (*gateway.Candidate, error) {
	rt := o.runtimeFor(area)

	o.switchPresenceGroup(area)

	current := o.currentTemperature(area)
	area.CurrentTemp = current

	res := o.resolver.Resolve(area, schedules, o.windowStates(area), now)
	if res.BoostExpired {
		if err := db.ClearBoost(o.conn, area.ID); err != nil {
			log.Error().Err(err).Str("area", area.ID).Msg("Failed to persist boost expiry")
		}
	}

	decision := hysteresis.Evaluate(hysteresis.Input{
		Prev:          rt.state,
		Enabled:       area.Enabled,
		Mode:          area.Mode,
		Current:       current,
		Target:        res.Target,
		TargetOK:      res.OK,
		Hysteresis:    area.HysteresisWidth(o.cfg.DefaultHysteresis),
		ManualOverlay: manualOverlay,
	})

	if decision.Changed {
		log.Info().
			Str("area", area.ID).
			Str("from", string(rt.state)).
			Str("to", string(decision.State)).
			Str("source", string(res.Source)).
			Float64("target", res.Target).
			Msg("Area state transition")
	}
	rt.state = decision.State
	area.State = decision.State

	o.actuate(ctx, area, rt, decision, res)

	if current != nil {
		datadog.Gauge("area.temperature", *current, fmt.Sprintf("area:%s", area.ID))
	}
	if res.OK {
		datadog.Gauge("area.target_temperature", res.Target, fmt.Sprintf("area:%s", area.ID))
	}
	if current != nil && res.OK {
		o.recorder.RecordArea(area.ID, *current, res.Target, decision.State)
	}

	if decision.State == model.StateManual {
		// the user's target is adopted after this cycle; keep the
		// previous candidate so one override does not cycle the boiler
		if err := db.ClearManualOverride(o.conn, area.ID); err != nil {
			log.Error().Err(err).Str("area", area.ID).Msg("Failed to clear manual override flag")
		}
		return rt.lastCandidate, nil
	}

	if decision.State != model.StateHeating || area.System == model.SystemAirco || !res.OK {
		rt.lastCandidate = nil
		if !o.pidEligible(area, schedules, now) {
			rt.pid.Reset()
		}
		return nil, nil
	}

	return o.boilerCandidate(area, rt, schedules, res.Target, current, boiler, boilerOK, now)
}

// boilerCandidate computes the area's proposed boiler setpoint:
// heating-curve estimate plus PID correction, floor-clamped to the
// system's minimum safe setpoint and then to the boiler-side guard.
func (o *Orchestrator) boilerCandidate(area *model.Area, rt *areaRuntime, schedules []model.Schedule, target float64, current *float64, boiler model.BoilerState, boilerOK bool, now time.Time) (*gateway.Candidate, error) {
	outside, err := o.source.OutdoorTemperature()
	if err != nil {
		// unknown outdoor temperature: repeat the last candidate rather
		// than guess a fresh one
		log.Warn().Str("area", area.ID).Msg("Outdoor temperature unavailable, keeping previous boiler candidate")
		return rt.lastCandidate, nil
	}

	rt.curve.SetCoefficient(area.Coefficient(o.cfg.DefaultCurveCoefficient))
	curveValue := rt.curve.Update(target, outside)

	pidOutput := 0.0
	if o.pidEligible(area, schedules, now) {
		if current != nil {
			pidOutput = rt.pid.Update(target-*current, curveValue, now)
		} else {
			pidOutput = rt.pid.LastOutput()
		}
	} else {
		rt.pid.Reset()
	}

	setpoint := curveValue + pidOutput
	if min, ok := minSafeSetpoint[area.System]; ok && setpoint < min {
		setpoint = min
	}

	if boilerOK {
		rt.guard.Calculate(boiler)
	}
	setpoint = rt.guard.Clamp(setpoint)

	log.Debug().
		Str("area", area.ID).
		Float64("curve", curveValue).
		Float64("pid", pidOutput).
		Float64("floor", rt.guard.Current()).
		Float64("candidate", setpoint).
		Msg("Boiler candidate computed")

	rt.lastCandidate = &gateway.Candidate{AreaID: area.ID, Setpoint: setpoint, System: area.System}
	return rt.lastCandidate, nil
}

// pidEligible gates the controller on the area's configured active-mode
// set. The resolved mode is the preset, else "schedule" when one is
// active, else "manual".
func (o *Orchestrator) pidEligible(area *model.Area, schedules []model.Schedule, now time.Time) bool {
	if !area.PIDEnabled {
		return false
	}
	mode := "manual"
	if area.Preset != model.PresetNone {
		mode = string(area.Preset)
	} else if _, ok := resolver.ActiveSchedule(area.ID, schedules, now); ok {
		mode = "schedule"
	}
	for _, m := range area.PIDActiveModes {
		if m == mode {
			return true
		}
	}
	return false
}

func (o *Orchestrator) currentTemperature(area *model.Area) *float64 {
	t, err := o.source.AreaTemperature(area.ID)
	if err != nil {
		log.Debug().Str("area", area.ID).Msg("Area temperature unavailable")
		return nil
	}
	return &t
}

func (o *Orchestrator) windowStates(area *model.Area) map[string]bool {
	states := map[string]bool{}
	for _, ws := range area.WindowSensors {
		open, err := o.source.BinaryState(ws.EntityID)
		if err != nil {
			// unknown reads as closed; a guessed-open window would
			// drop the target for no reason
			continue
		}
		states[ws.EntityID] = open
	}
	return states
}

// switchPresenceGroup flips the area between away and home presets on
// presence edges. This is the upstream step the resolver's preset rung
// then picks up.
func (o *Orchestrator) switchPresenceGroup(area *model.Area) {
	if len(area.PresenceSensors) == 0 {
		return
	}
	rt := o.runtime[area.ID]

	known := 0
	anyHome := false
	for _, entityID := range area.PresenceSensors {
		present, err := o.source.BinaryState(entityID)
		if err != nil {
			continue
		}
		known++
		if present {
			anyHome = true
		}
	}
	if known == 0 {
		return
	}

	if !anyHome && !rt.presenceAway && area.Preset != model.PresetAway {
		log.Info().Str("area", area.ID).Msg("Everyone away, switching preset to away")
		if err := db.UpdateAreaPreset(o.conn, area.ID, model.PresetAway); err != nil {
			log.Error().Err(err).Str("area", area.ID).Msg("Failed to persist away preset")
			return
		}
		area.Preset = model.PresetAway
		rt.presenceAway = true
		return
	}
	if anyHome && rt.presenceAway {
		rt.presenceAway = false
		if area.Preset == model.PresetAway {
			log.Info().Str("area", area.ID).Msg("Presence detected, switching preset to home")
			if err := db.UpdateAreaPreset(o.conn, area.ID, model.PresetHome); err != nil {
				log.Error().Err(err).Str("area", area.ID).Msg("Failed to persist home preset")
				return
			}
			area.Preset = model.PresetHome
		}
	}
}

// observeAutotune feeds the dispatched boiler setpoint to every
// opted-in heating area's curve model and persists a materially
// different coefficient average.
func (o *Orchestrator) observeAutotune(areas []*model.Area, setpoint float64, now time.Time) {
	if setpoint <= 0 {
		return
	}
	outside, err := o.source.OutdoorTemperature()
	if err != nil {
		return
	}

	o.mu.RLock()
	schedules := o.schedules
	o.mu.RUnlock()

	for _, area := range areas {
		if !area.AutotuneEnabled || area.System == model.SystemAirco {
			continue
		}
		rt := o.runtime[area.ID]
		if rt == nil || rt.state != model.StateHeating {
			continue
		}
		res := o.resolver.Resolve(area, schedules, o.windowStates(area), now)
		if !res.OK {
			continue
		}
		avg := rt.curve.Observe(setpoint, res.Target, outside)
		if avg == nil {
			continue
		}
		prev := area.Coefficient(o.cfg.DefaultCurveCoefficient)
		if diff := *avg - prev; diff > 0.05 || diff < -0.05 {
			log.Info().
				Str("area", area.ID).
				Float64("previous", prev).
				Float64("tuned", *avg).
				Msg("Autotuned heating-curve coefficient")
			if err := db.UpdateCurveCoefficient(o.conn, area.ID, *avg); err != nil {
				log.Error().Err(err).Str("area", area.ID).Msg("Failed to persist tuned coefficient")
			}
		}
	}
}

// ExpectedTarget is the override detector's view of what the system
// itself currently wants the area at. Runs off the control goroutine
// against the last cycle's snapshot.
func (o *Orchestrator) ExpectedTarget(areaID string, now time.Time) (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, area := range o.areas {
		if area.ID != areaID {
			continue
		}
		clone := *area
		res := o.resolver.Resolve(&clone, o.schedules, o.windowStates(area), now)
		return res.Target, res.OK
	}
	return 0, false
}

// ConfirmOverride is the single mutation path from the event-driven
// side: persist the user's target with the override flag, leave the
// one-cycle overlay in the mailbox, and force an immediate refresh.
// The control goroutine's runtime state is never touched from here.
func (o *Orchestrator) ConfirmOverride(areaID string, temp float64) error {
	if err := db.SetManualOverride(o.conn, areaID, temp); err != nil {
		return fmt.Errorf("persist manual override: %w", err)
	}

	o.mu.Lock()
	o.pendingManual[areaID] = true
	o.mu.Unlock()

	o.Kick()
	return nil
}

// dispatch executes one command with the central fallback policy: a
// single alternative attempt on ErrUnsupported, otherwise the area is
// left in its previously commanded state.
func (o *Orchestrator) dispatch(ctx context.Context, cmd command.Command) {
	err := o.sink.Dispatch(ctx, cmd)
	if err == nil {
		return
	}

	if errors.Is(err, command.ErrUnsupported) {
		if fallback, ok := o.fallbackFor(cmd); ok {
			log.Warn().
				Str("command", cmd.Describe()).
				Str("fallback", fallback.Describe()).
				Msg("Command unsupported, attempting fallback")
			if err := o.sink.Dispatch(ctx, fallback); err != nil {
				log.Error().Err(err).Str("command", fallback.Describe()).Msg("Fallback dispatch failed")
				datadog.Count("command.dispatch_errors", 1)
			}
			return
		}
	}

	log.Error().Err(err).Str("command", cmd.Describe()).Msg("Command dispatch failed")
	datadog.Count("command.dispatch_errors", 1)
}

func (o *Orchestrator) fallbackFor(cmd command.Command) (command.Command, bool) {
	switch c := cmd.(type) {
	case command.SetThermostat:
		if !c.Heating {
			// no off support: park the device at frost protection
			return command.SetThermostat{
				DeviceID: c.DeviceID,
				Heating:  true,
				Temp:     o.cfg.FrostProtectionTemp,
				Mode:     model.ModeHeat,
			}, true
		}
	case command.SetValve:
		if !c.TemperatureOnly {
			return command.SetValve{
				DeviceID:        c.DeviceID,
				Heating:         c.Heating,
				Temp:            c.Temp,
				TemperatureOnly: true,
			}, true
		}
	}
	return nil, false
}

// actuate maps the hysteresis decision onto the area's devices. Airco
// areas drive thermostats only; valves and pump switches follow the
// heating state.
func (o *Orchestrator) actuate(ctx context.Context, area *model.Area, rt *areaRuntime, decision hysteresis.Decision, res resolver.Resolution) {
	devices, ok := o.devices.Areas[area.ID]
	if !ok {
		if decision.Actuate != hysteresis.ActuateNone {
			log.Warn().Str("area", area.ID).Msg("No devices mapped for area")
		}
		return
	}

	switch decision.Actuate {
	case hysteresis.ActuateForceOff:
		for _, t := range devices.Thermostats {
			o.dispatch(ctx, command.SetThermostat{DeviceID: t.ID, Heating: false, Temp: o.cfg.FrostProtectionTemp, Mode: model.ModeOff})
		}
		for _, v := range devices.Valves {
			o.dispatch(ctx, command.SetValve{DeviceID: v.ID, Heating: false, Temp: o.cfg.FrostProtectionTemp})
		}
		for _, sw := range devices.Switches {
			o.dispatch(ctx, command.SetSwitch{DeviceID: sw.ID, On: false})
		}
		rt.targetSent = false
		return

	case hysteresis.ActuateHeatOn, hysteresis.ActuateCoolOn:
		heating := decision.Actuate == hysteresis.ActuateHeatOn
		mode := model.ModeHeat
		if !heating {
			mode = model.ModeCool
		}
		for _, t := range devices.Thermostats {
			o.dispatch(ctx, command.SetThermostat{DeviceID: t.ID, Heating: true, Temp: res.Target, Mode: mode})
		}
		if area.System != model.SystemAirco {
			for _, v := range devices.Valves {
				o.dispatch(ctx, command.SetValve{DeviceID: v.ID, Heating: heating, Temp: res.Target})
			}
			for _, sw := range devices.Switches {
				o.dispatch(ctx, command.SetSwitch{DeviceID: sw.ID, On: heating})
			}
		}
		rt.lastSentTarget = res.Target
		rt.targetSent = true
		return

	case hysteresis.ActuateHeatOff, hysteresis.ActuateCoolOff:
		if area.System != model.SystemAirco {
			for _, v := range devices.Valves {
				o.dispatch(ctx, command.SetValve{DeviceID: v.ID, Heating: false, Temp: res.Target})
			}
			for _, sw := range devices.Switches {
				o.dispatch(ctx, command.SetSwitch{DeviceID: sw.ID, On: false})
			}
		}
		// thermostats stay synced to the target while idle
		for _, t := range devices.Thermostats {
			o.dispatch(ctx, command.SetThermostat{DeviceID: t.ID, Heating: true, Temp: res.Target, Mode: area.Mode})
		}
		rt.lastSentTarget = res.Target
		rt.targetSent = true
		return
	}

	// no transition: re-sync thermostats when the resolved target moved
	// (schedule flips, boost expiry) without a state change
	if res.OK && decision.State != model.StateOff && decision.State != model.StateManual {
		if !rt.targetSent || res.Target-rt.lastSentTarget >= 0.1 || rt.lastSentTarget-res.Target >= 0.1 {
			for _, t := range devices.Thermostats {
				o.dispatch(ctx, command.SetThermostat{DeviceID: t.ID, Heating: true, Temp: res.Target, Mode: area.Mode})
			}
			rt.lastSentTarget = res.Target
			rt.targetSent = true
		}
	}
}
