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

import "strconv"

const (
	defaultValveMode         = "superheat"
	defaultDischargeSetpoint = 60.0
	defaultEvapApproach      = 5.0
	defaultCondensingTemp    = 35.0
	defaultSegments          = 100
	defaultLengthM           = 60.0
	defaultDiameterMM        = 125.0
	defaultHeatLossWPerM     = 0.5
)

// PlantConfig describes the cascade. Unset numeric fields keep the controller defaults.
type PlantConfig struct {
	KTime             *float64      `yaml:"k_time,omitempty"`
	NominalCOP        *float64      `yaml:"nominal_cop,omitempty"`
	ValveMode         string        `yaml:"valve_mode"`
	DischargeSetpoint *float64      `yaml:"discharge_setpoint"`
	ShutdownThreshold *int          `yaml:"shutdown_threshold,omitempty"`
	Units             []*UnitConfig `yaml:"units"`
}

// UnitConfig is one compressor. Either Dataset (coefficient and envelope file) or Table
// (speed to heat power, kW) must be given.
type UnitConfig struct {
	Name          string             `yaml:"name"`
	Dataset       string             `yaml:"dataset,omitempty"`
	Table         []SpeedPowerConfig `yaml:"table,omitempty"`
	COP           *float64           `yaml:"cop,omitempty"`
	DischargeTemp *float64           `yaml:"discharge_temp,omitempty"`
	Operating     *OperatingConfig   `yaml:"operating"`
	Valve         *ValveConfig       `yaml:"valve,omitempty"`
}

type SpeedPowerConfig struct {
	Speed float64 `yaml:"speed"`
	Power float64 `yaml:"power"`
}

type OperatingConfig struct {
	EvapApproach   *float64 `yaml:"evap_approach"`
	CondensingTemp *float64 `yaml:"condensing_temp"`
	MinSpeed       *float64 `yaml:"min_speed,omitempty"`
	MaxSpeed       *float64 `yaml:"max_speed,omitempty"`
	SpeedStep      *float64 `yaml:"speed_step,omitempty"`
	PowerScale     *float64 `yaml:"power_scale,omitempty"`
}

// ValveConfig overrides expansion valve parameters.
type ValveConfig struct {
	SuperheatSetpoint    *float64 `yaml:"superheat_setpoint,omitempty"`
	TargetSuperheat      *float64 `yaml:"target_superheat,omitempty"`
	LowThreshold         *float64 `yaml:"low_threshold,omitempty"`
	HighThreshold        *float64 `yaml:"high_threshold,omitempty"`
	CriticalLowThreshold *float64 `yaml:"critical_low_threshold,omitempty"`
	CriticalLowStep      *float64 `yaml:"critical_low_step,omitempty"`
	CriticalDischarge    *float64 `yaml:"critical_discharge,omitempty"`
	CriticalHighStep     *float64 `yaml:"critical_high_step,omitempty"`
	WaitHigh             *int     `yaml:"wait_high,omitempty"`
	WaitLow              *int     `yaml:"wait_low,omitempty"`
	Kp                   *float64 `yaml:"kp,omitempty"`
	Kd                   *float64 `yaml:"kd,omitempty"`
	NominalOpening       *float64 `yaml:"nominal_opening,omitempty"`
}

type HydraulicsConfig struct {
	Segments         *int         `yaml:"segments"`
	LengthM          *float64     `yaml:"length_m"`
	DiameterMM       *float64     `yaml:"diameter_mm"`
	HeatLossWPerM    *float64     `yaml:"heat_loss_w_per_m"`
	SmoothingSeconds *float64     `yaml:"smoothing_seconds,omitempty"`
	SubSteps         *int         `yaml:"sub_steps,omitempty"`
	AmbientTemp      *float64     `yaml:"ambient_temp,omitempty"`
	Fluid            *FluidConfig `yaml:"fluid,omitempty"`
}

// FluidConfig holds the physical constants of the circuit medium. Unset means water.
type FluidConfig struct {
	Density          float64 `yaml:"density"`
	SpecificHeat     float64 `yaml:"specific_heat"`
	LoopSpecificHeat float64 `yaml:"loop_specific_heat"`
}

func NewPlantConfig() *PlantConfig {
	cfg := &PlantConfig{}
	cfg.FillDefaults(nil)
	return cfg
}

// FillDefaults names anonymous units and hands the shared valve section to units
// without their own.
func (c *PlantConfig) FillDefaults(valve *ValveConfig) {
	if c.ValveMode == "" {
		c.ValveMode = defaultValveMode
	}
	if c.DischargeSetpoint == nil {
		c.DischargeSetpoint = GetPTR(defaultDischargeSetpoint)
	}
	for i, u := range c.Units {
		if u.Name == "" {
			u.Name = "hp" + strconv.Itoa(i+1)
		}
		if u.Operating == nil {
			u.Operating = &OperatingConfig{}
		}
		u.Operating.FillDefaults()
		// a table unit reports its discharge at the set point unless told otherwise
		if len(u.Table) > 0 && u.DischargeTemp == nil {
			u.DischargeTemp = GetPTR(*c.DischargeSetpoint)
		}
		if u.Valve == nil && valve != nil {
			v := *valve
			u.Valve = &v
		}
	}
}

func (o *OperatingConfig) FillDefaults() {
	if o.EvapApproach == nil {
		o.EvapApproach = GetPTR(defaultEvapApproach)
	}
	if o.CondensingTemp == nil {
		o.CondensingTemp = GetPTR(defaultCondensingTemp)
	}
}

func NewHydraulicsConfig() *HydraulicsConfig {
	cfg := &HydraulicsConfig{}
	cfg.FillDefaults()
	return cfg
}

func (h *HydraulicsConfig) FillDefaults() {
	if h.Segments == nil {
		h.Segments = GetPTR(defaultSegments)
	}
	if h.LengthM == nil {
		h.LengthM = GetPTR(defaultLengthM)
	}
	if h.DiameterMM == nil {
		h.DiameterMM = GetPTR(defaultDiameterMM)
	}
	if h.HeatLossWPerM == nil {
		h.HeatLossWPerM = GetPTR(defaultHeatLossWPerM)
	}
}
