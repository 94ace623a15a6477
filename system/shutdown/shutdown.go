package shutdown

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/command"
	"github.com/thatsimonsguy/heating-engine/internal/debounce"
	"github.com/thatsimonsguy/heating-engine/internal/history"
)

// Resources is everything teardown has to stop, in order: the control
// loop first, then pending debounce timers, then a final boiler-off so
// the plant is never left firing, then the flushes and closes.
type Resources struct {
	Cancel    context.CancelFunc
	Debouncer *debounce.Debouncer
	Sink      command.Sink
	GatewayID string
	Recorder  *history.Recorder
	MQTT      mqtt.Client
	DB        *sqlx.DB
}

func (r *Resources) Shutdown() {
	log.Info().Msg("Shutting down")

	if r.Cancel != nil {
		r.Cancel()
	}
	if r.Debouncer != nil {
		r.Debouncer.Stop()
	}

	if r.Sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Sink.Dispatch(ctx, command.SetGatewaySetpoint{DeviceID: r.GatewayID, Temp: 0}); err != nil {
			log.Error().Err(err).Msg("Failed to issue final boiler-off command")
		} else {
			log.Info().Msg("Boiler commanded off")
		}
	}

	r.Recorder.Close()
	if r.MQTT != nil {
		r.MQTT.Disconnect(250)
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}

func (r *Resources) ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	r.Shutdown()
}
