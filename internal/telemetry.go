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
	"time"

	"github.com/antst/hpcascade/internal/plant"
)

type unitTelemetry struct {
	Name          string  `json:"name"`
	Running       bool    `json:"running"`
	Faulted       bool    `json:"faulted"`
	Speed         float64 `json:"speed"`
	RuntimeHours  float64 `json:"runtime_h"`
	Evap          float64 `json:"evap_temp"`
	Cond          float64 `json:"cond_temp"`
	HeatKW        float64 `json:"heat_kw"`
	ElectricalKW  float64 `json:"electrical_kw"`
	DischargeTemp float64 `json:"discharge_temp"`
	ValveOpening  float64 `json:"valve_opening"`
	ValveStatus   string  `json:"valve_status"`
	Limited       int     `json:"limited"`
	OutOfEnvelope int     `json:"out_of_envelope"`
	Error         string  `json:"error,omitempty"`
}

type plantTelemetry struct {
	Time         time.Time       `json:"time"`
	Enabled      bool            `json:"enabled"`
	ValveMode    string          `json:"valve_mode"`
	OutsideTemp  float64         `json:"outside_temp"`
	Humidity     float64         `json:"humidity"`
	DemandKW     float64         `json:"demand_kw"`
	HeatKW       float64         `json:"heat_kw"`
	ElectricalKW float64         `json:"electrical_kw"`
	COP          float64         `json:"cop"`
	Outlet       *float64        `json:"outlet_temp,omitempty"`
	LoopMin      *float64        `json:"loop_min,omitempty"`
	LoopMax      *float64        `json:"loop_max,omitempty"`
	LoopError    string          `json:"loop_error,omitempty"`
	Units        []unitTelemetry `json:"units"`
}

// telemetry summarizes a cycle report. Called with c.mu held.
func (c *PlantController) telemetry(rep plant.Report) plantTelemetry {
	amb := fallbackAmbient(c.cfg.Outside)
	if c.outside != nil {
		amb = c.outside.Ambient()
	}
	t := plantTelemetry{
		Time:         time.Now(),
		Enabled:      c.plant.Enabled(),
		ValveMode:    c.plant.ValveMode().String(),
		OutsideTemp:  amb.Temperature,
		Humidity:     amb.Humidity,
		DemandKW:     rep.Demand,
		HeatKW:       rep.HeatOutputW / 1e3,
		ElectricalKW: rep.ElectricalPowerW / 1e3,
		COP:          rep.COP,
		Units:        make([]unitTelemetry, len(rep.Units)),
	}

	if loop := c.plant.Loop(); loop.Initialized() {
		lo, hi := loop.Spread()
		outlet := rep.Outlet
		t.Outlet, t.LoopMin, t.LoopMax = &outlet, &lo, &hi
	}
	if rep.LoopErr != nil {
		t.LoopError = rep.LoopErr.Error()
	}

	for i, u := range rep.Units {
		runtime := u.Runtime
		if u.Running {
			runtime += rep.Now - u.LastStart
		}
		ut := unitTelemetry{
			Name:          u.Name,
			Running:       u.Running,
			Faulted:       u.Faulted,
			Speed:         u.Speed,
			RuntimeHours:  runtime.Hours(),
			ValveOpening:  u.Opening,
			ValveStatus:   u.ValveStatus.String(),
			Limited:       u.Counters.Limited,
			OutOfEnvelope: u.Counters.OutOfEnvelope,
		}
		if u.Running {
			ut.Evap, ut.Cond = u.Evap, u.Cond
			ut.HeatKW = u.Performance.HeatOutput / 1e3
			ut.ElectricalKW = u.Performance.ElectricalPower / 1e3
			ut.DischargeTemp = u.Performance.DischargeTemp
		}
		if u.Err != nil {
			ut.Error = u.Err.Error()
		}
		t.Units[i] = ut
	}
	return t
}
