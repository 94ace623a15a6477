package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/command"
	"github.com/thatsimonsguy/heating-engine/internal/config"
	"github.com/thatsimonsguy/heating-engine/internal/datadog"
	"github.com/thatsimonsguy/heating-engine/internal/debounce"
	"github.com/thatsimonsguy/heating-engine/internal/env"
	"github.com/thatsimonsguy/heating-engine/internal/history"
	"github.com/thatsimonsguy/heating-engine/internal/logging"
	"github.com/thatsimonsguy/heating-engine/internal/notifications"
	"github.com/thatsimonsguy/heating-engine/internal/orchestrator"
	"github.com/thatsimonsguy/heating-engine/internal/override"
	"github.com/thatsimonsguy/heating-engine/internal/sensors"
	"github.com/thatsimonsguy/heating-engine/system/shutdown"
	"github.com/thatsimonsguy/heating-engine/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("db_path", cfg.DBPath).
		Int("areas", len(cfg.Areas)).
		Msg("Starting heating engine")

	if cfg.EnableDatadog {
		datadog.InitMetrics()
	}
	notifier := notifications.New(cfg.NtfyTopic)

	conn, err := startup.OpenDatabase(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Database startup failed")
	}

	devices, err := startup.LoadDevices(&cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Device map load failed")
	}
	env.Devices = devices

	mqttClient, err := command.Connect(cfg.MQTT)
	if err != nil {
		log.Fatal().Err(err).Msg("MQTT connection failed")
	}

	sink := command.NewMQTTSink(mqttClient, devices)
	recorder := history.New(cfg.Influx)

	ctx, cancel := context.WithCancel(context.Background())
	orch := orchestrator.New(&cfg, devices, conn, nil, sink, recorder)

	detector := override.New(orch, notifier, time.Now(), time.Duration(cfg.OverrideGraceSeconds)*time.Second)
	debouncer := debounce.New(time.Duration(cfg.DebounceSeconds) * time.Second)

	source := sensors.NewMQTTSource(mqttClient, devices, func(areaID, deviceID string, temp float64) {
		// coalesce device echoes per device, classify after the quiet period
		debouncer.Trigger(fmt.Sprintf("%s/%s", areaID, deviceID), func() {
			detector.HandleTargetChange(areaID, deviceID, temp, time.Now())
		})
	})
	if err := source.Subscribe(); err != nil {
		log.Fatal().Err(err).Msg("Sensor subscriptions failed")
	}
	orch.SetSource(source)

	resources := &shutdown.Resources{
		Cancel:    cancel,
		Debouncer: debouncer,
		Sink:      sink,
		GatewayID: devices.Gateway.ID,
		Recorder:  recorder,
		MQTT:      mqttClient,
		DB:        conn,
	}

	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Info().Str("signal", sig.String()).Msg("Signal received")

	resources.Shutdown()
	<-done
}
