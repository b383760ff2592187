/*
 * Copyright (c) 2023. Anton Starikov -- All Rights Reserved
 *
 * This file is part of HPCASCADE project.
 *
 * HPCASCADE is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package internal

import (
	"strconv"
	"sync"
	"time"

	"github.com/antst/hpcascade/internal/compressor"
	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/db"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/safe_mqtt"
)

const (
	outsideTemperaturePrefix = "outside-temperature-"
	outsideHumidityPrefix    = "outside-humidity-"
)

type averageFunc func([]*SensorController) (float64, time.Time)

// OutsideController averages the outside air sensors into the plant ambient.
type OutsideController struct {
	mu                 sync.RWMutex
	cfg                *config.OutsideConfig
	temperatureSensors []*SensorController
	humiditySensors    []*SensorController
	childChan          chan bool
	ambient            compressor.Ambient
	timestamp          time.Time
	temperatureFunc    averageFunc
	humidityFunc       averageFunc
}

func (o *OutsideController) childProcessor() {
	for range o.childChan {
		o.updateAverage()
	}
}

func (o *OutsideController) updateAverage() {
	t, tts := o.temperatureFunc(o.temperatureSensors)
	h, hts := o.humidityFunc(o.humiditySensors)

	o.mu.Lock()
	defer o.mu.Unlock()
	if tts.After(zeroTS) {
		o.ambient.Temperature = t
		o.timestamp = tts
	}
	if hts.After(zeroTS) {
		o.ambient.Humidity = h
	}
	logger.L().Debugf("Outside air: %.1f °C, %.0f %%", o.ambient.Temperature, o.ambient.Humidity)
}

func linkAverageFunc(kind *string) averageFunc {
	if *kind != config.DefaultAverageType {
		logger.L().Errorf("Unknown average function type: %v", *kind)
		logger.L().Error("Reverting to the `mean`")
		*kind = config.DefaultAverageType
	}
	return sensorsMean
}

func (o *OutsideController) LinkAverageFun() {
	o.temperatureFunc = linkAverageFunc(&o.cfg.TemperatureAverageType)
	if len(o.cfg.HumiditySensors) > 0 {
		o.humidityFunc = linkAverageFunc(&o.cfg.HumidityAverageType)
	} else {
		o.humidityFunc = sensorsMean
	}
}

func NewOutsideController(
	_cfg *config.OutsideConfig, _mqttCfg *config.MQTTConfig, _mqtt safe_mqtt.MqttClient, _q *db.Queries,
) *OutsideController {
	o := &OutsideController{
		cfg:       _cfg,
		timestamp: zeroTS,
		childChan: make(chan bool, childChanBuffer),
		ambient:   fallbackAmbient(_cfg),
	}
	o.LinkAverageFun()

	o.temperatureSensors = newSensorGroup(outsideTemperaturePrefix, _cfg.TemperatureSensors, _mqttCfg, _mqtt, _q, o.childChan)
	o.humiditySensors = newSensorGroup(outsideHumidityPrefix, _cfg.HumiditySensors, _mqttCfg, _mqtt, _q, o.childChan)

	go o.childProcessor()
	o.updateAverage()
	return o
}

func newSensorGroup(
	prefix string, cfgs []*config.SensorConfig, mqttCfg *config.MQTTConfig, client safe_mqtt.MqttClient,
	q *db.Queries, ch chan<- bool,
) []*SensorController {
	sensors := make([]*SensorController, len(cfgs))
	for i, sensor := range cfgs {
		name := prefix
		if sensor.Name == "" {
			name += strconv.Itoa(i + 1)
		} else {
			name += sensor.Name
		}
		sensors[i] = NewSensorController(name, sensor, mqttCfg, client, q, ch)
	}
	return sensors
}

func fallbackAmbient(cfg *config.OutsideConfig) compressor.Ambient {
	return compressor.Ambient{Temperature: *cfg.Temperature, Humidity: *cfg.Humidity}
}

// Ambient returns the averaged outside air, or the configured fallback for quantities
// no sensor has reported yet.
func (o *OutsideController) Ambient() compressor.Ambient {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ambient
}

// Close stops the averaging goroutine.
func (o *OutsideController) Close() {
	close(o.childChan)
}
