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
	"fmt"
	"strings"

	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/plant"
	"github.com/antst/hpcascade/internal/safe_mqtt"
)

// ActuatorController publishes the set points of each unit after a cycle.
type ActuatorController struct {
	cfg  *config.ActuatorConfig
	mqtt safe_mqtt.MqttClient
}

func NewActuatorController(_cfg *config.ActuatorConfig, _mqtt safe_mqtt.MqttClient) *ActuatorController {
	return &ActuatorController{cfg: _cfg, mqtt: _mqtt}
}

func (a *ActuatorController) Update(rep plant.Report) {
	for _, u := range rep.Units {
		run := "0"
		if u.Running {
			run = "1"
		}
		a.publish(a.cfg.RunTopic, u.Name, run)
		a.publish(a.cfg.SpeedTopic, u.Name, fmt.Sprintf("%.1f", u.Speed))
		a.publish(a.cfg.ValveTopic, u.Name, fmt.Sprintf("%.1f", u.Opening))
	}
}

func (a *ActuatorController) publish(pattern, unit, payload string) {
	topic := unitTopic(pattern, unit)
	if token := a.mqtt.SafePublish(topic, mqttQoS, *a.cfg.Retain, payload); token.Wait() && token.Error() != nil {
		logger.L().Error(token.Error())
	}
}

// unitTopic fills the unit name into pattern, or appends it as the last level.
func unitTopic(pattern, unit string) string {
	if strings.Contains(pattern, "%s") {
		return strings.Replace(pattern, "%s", unit, 1)
	}
	return strings.TrimSuffix(pattern, "/") + "/" + unit
}
