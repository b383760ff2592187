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
	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/db"
	"github.com/antst/hpcascade/internal/safe_mqtt"
)

const inputPrefix = "input-"

// InputsController follows the external topics bound to plant request fields.
type InputsController struct {
	sensors map[string]*SensorController
}

func NewInputsController(
	_cfg *config.InputsConfig, _mqttCfg *config.MQTTConfig, _mqtt safe_mqtt.MqttClient, _q *db.Queries,
	_controlChan chan<- bool,
) *InputsController {
	c := &InputsController{sensors: make(map[string]*SensorController)}
	for name, sensor := range _cfg.Sensors() {
		c.sensors[name] = NewSensorController(inputPrefix+name, sensor, _mqttCfg, _mqtt, _q, _controlChan)
	}
	return c
}

// Get returns the last reading of the named input, nil when unbound or not yet read.
func (c *InputsController) Get(name string) *float64 {
	s, ok := c.sensors[name]
	if !ok {
		return nil
	}
	if v, ok := s.Value(); ok {
		return &v
	}
	return nil
}
