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

package config

// ActuatorConfig names the topics the set points are published to. `%s` is replaced by
// the unit name.
type ActuatorConfig struct {
	RunTopic   string `yaml:"run_topic"`
	SpeedTopic string `yaml:"speed_topic"`
	ValveTopic string `yaml:"valve_topic"`
	Retain     *bool  `yaml:"retain"`
}

const (
	defaultRunTopic   = "hpcascade/%s/run"
	defaultSpeedTopic = "hpcascade/%s/speed"
	defaultValveTopic = "hpcascade/%s/valve"
)

func NewActuatorConfig() *ActuatorConfig {
	cfg := &ActuatorConfig{}
	cfg.FillDefaults()
	return cfg
}

func (c *ActuatorConfig) FillDefaults() {
	if c.RunTopic == "" {
		c.RunTopic = defaultRunTopic
	}
	if c.SpeedTopic == "" {
		c.SpeedTopic = defaultSpeedTopic
	}
	if c.ValveTopic == "" {
		c.ValveTopic = defaultValveTopic
	}
	if c.Retain == nil {
		c.Retain = GetPTR(true)
	}
}
