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

func (s *SensorConfig) FillDefaults() {
	if s.Offset == nil {
		s.Offset = GetPTR(0.0)
	}
	if s.Scale == nil {
		s.Scale = GetPTR(1.0)
	}
	if s.Weight == nil {
		s.Weight = GetPTR(1.0)
	}
}

// SensorConfig is one MQTT value source. The reading is value*scale + offset.
type SensorConfig struct {
	Name      string   `yaml:"name,omitempty"`
	Topic     string   `yaml:"topic"`
	JSONEntry *string  `yaml:"json_entry,omitempty"`
	Offset    *float64 `yaml:"offset"`
	Scale     *float64 `yaml:"scale"`
	Weight    *float64 `yaml:"weight"`
}

func NewSensorConfig() *SensorConfig {
	cfg := &SensorConfig{}
	cfg.FillDefaults()
	return cfg
}

// InputsConfig binds plant request fields to external topics. A value set on the
// control topic of the same name wins until it is cleared with an empty payload.
type InputsConfig struct {
	// Demand is the requested thermal power, kW.
	Demand *SensorConfig `yaml:"demand,omitempty"`
	// ElectricalCap is the electrical power limit, kW, used without a thermal demand.
	ElectricalCap *SensorConfig `yaml:"electrical_cap,omitempty"`
	InletTemp     *SensorConfig `yaml:"inlet_temp,omitempty"`
	// VolumetricFlow is the loop flow, m³/s.
	VolumetricFlow *SensorConfig `yaml:"volumetric_flow,omitempty"`
	// SinkPower is the heat drawn by the consumer, W.
	SinkPower *SensorConfig `yaml:"sink_power,omitempty"`

	// DemandKW is the thermal demand used until a reading or control value arrives.
	DemandKW *float64 `yaml:"demand_kw,omitempty"`
	// OutletInit seeds the loop temperature, °C.
	OutletInit *float64 `yaml:"outlet_init"`
	// Flow is the loop flow used until a reading arrives, m³/s; 0 derives it.
	Flow *float64 `yaml:"flow"`
}

const (
	defaultOutletInit = 35.0
	defaultFlow       = 0.001
)

func NewInputsConfig() *InputsConfig {
	cfg := &InputsConfig{}
	cfg.FillDefaults()
	return cfg
}

func (c *InputsConfig) FillDefaults() {
	for _, s := range c.Sensors() {
		s.FillDefaults()
	}
	if c.OutletInit == nil {
		c.OutletInit = GetPTR(defaultOutletInit)
	}
	if c.Flow == nil {
		c.Flow = GetPTR(defaultFlow)
	}
}

// Sensors returns the configured inputs by name.
func (c *InputsConfig) Sensors() map[string]*SensorConfig {
	all := map[string]*SensorConfig{
		"demand":          c.Demand,
		"electrical_cap":  c.ElectricalCap,
		"inlet_temp":      c.InletTemp,
		"volumetric_flow": c.VolumetricFlow,
		"sink_power":      c.SinkPower,
	}
	for k, v := range all {
		if v == nil || v.Topic == "" {
			delete(all, k)
		}
	}
	return all
}
