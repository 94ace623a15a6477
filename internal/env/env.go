package env

import (
	"github.com/thatsimonsguy/heating-engine/internal/config"
)

var (
	Cfg     *config.Config
	Devices *config.DeviceMap
)
