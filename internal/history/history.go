package history

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/config"
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Recorder writes one sample per area per control cycle to InfluxDB.
// Writes are batched and asynchronous; a nil Recorder drops everything,
// so cycles never block on history.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func New(cfg config.InfluxConfig) *Recorder {
	if !cfg.Enabled {
		log.Info().Msg("History recording disabled")
		return nil
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("History recording initialized")

	return &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
}

func (r *Recorder) RecordArea(areaID string, current, target float64, state model.AreaState) {
	if r == nil {
		return
	}
	point := write.NewPoint(
		"area_cycle",
		map[string]string{
			"area":  areaID,
			"state": string(state),
		},
		map[string]interface{}{
			"current_temp": current,
			"target_temp":  target,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

func (r *Recorder) RecordBoiler(setpoint float64, candidates int) {
	if r == nil {
		return
	}
	point := write.NewPoint(
		"boiler_cycle",
		map[string]string{},
		map[string]interface{}{
			"setpoint":   setpoint,
			"candidates": candidates,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

// Close flushes pending points before teardown.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.writeAPI.Flush()
	r.client.Close()
}
