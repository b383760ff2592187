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

// Package hydraulics simulates heat transport through the separation circuit pipe as a
// chain of well mixed segments.
package hydraulics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/antst/hpcascade/internal/logger"
)

const (
	DefaultSubSteps         = 10
	DefaultSmoothingSeconds = 10.0
)

var (
	ErrConfiguration = errors.New("invalid hydraulic loop configuration")
	ErrInvalidInput  = errors.New("invalid hydraulic step input")
)

// Fluid properties. Density in kg/m³, specific heats in J/(kg·K).
type Fluid struct {
	Density      float64
	SpecificHeat float64
	// LoopSpecificHeat is the heat capacity of the circuit medium held in a segment.
	LoopSpecificHeat float64
}

func Water() Fluid {
	return Fluid{Density: 998.2, SpecificHeat: 4182, LoopSpecificHeat: 4180}
}

type Config struct {
	Segments      int
	LengthM       float64
	DiameterMM    float64
	HeatLossWPerM float64
	Fluid         Fluid
	// SmoothingSeconds is the outlet averaging window.
	SmoothingSeconds float64
	SubSteps         int
	// AmbientTemp, when set, is the temperature pipe losses cannot cool below.
	AmbientTemp *float64
}

// StepInput of one simulation step. Either InletTemp or a positive VolumetricFlow (m³/s)
// must be given; without a flow it is derived from the heat power.
type StepInput struct {
	InletTemp      *float64
	OutletInit     float64
	Dt             float64
	HeatPowerW     float64
	VolumetricFlow *float64
	SinkPowerW     float64
}

type Loop struct {
	cfg      Config
	segLen   float64
	segVol   float64
	temps    []float64
	history  []float64
	smoothed float64
}

func New(cfg Config) (*Loop, error) {
	if cfg.Fluid == (Fluid{}) {
		cfg.Fluid = Water()
	}
	if cfg.SubSteps == 0 {
		cfg.SubSteps = DefaultSubSteps
	}
	if cfg.SmoothingSeconds == 0 {
		cfg.SmoothingSeconds = DefaultSmoothingSeconds
	}

	switch {
	case cfg.Segments < 1:
		return nil, errors.WithMessagef(ErrConfiguration, "%d segments", cfg.Segments)
	case !(cfg.LengthM > 0) || !(cfg.DiameterMM > 0):
		return nil, errors.WithMessagef(ErrConfiguration, "pipe %v m x %v mm", cfg.LengthM, cfg.DiameterMM)
	case cfg.HeatLossWPerM < 0:
		return nil, errors.WithMessagef(ErrConfiguration, "heat loss %v W/m", cfg.HeatLossWPerM)
	case !(cfg.Fluid.Density > 0) || !(cfg.Fluid.SpecificHeat > 0) || !(cfg.Fluid.LoopSpecificHeat > 0):
		return nil, errors.WithMessagef(ErrConfiguration, "fluid %+v", cfg.Fluid)
	case cfg.SubSteps < 1 || !(cfg.SmoothingSeconds > 0):
		return nil, errors.WithMessagef(
			ErrConfiguration, "%d sub-steps, %v s smoothing", cfg.SubSteps, cfg.SmoothingSeconds,
		)
	}

	d := cfg.DiameterMM / 1000
	area := math.Pi * d * d / 4
	l := &Loop{
		cfg:    cfg,
		segLen: cfg.LengthM / float64(cfg.Segments),
	}
	l.segVol = area * l.segLen
	logger.L().Debugf("hydraulic loop: %d segments, %.3f m³ total", cfg.Segments, area*cfg.LengthM)
	return l, nil
}

func (l *Loop) Config() Config { return l.cfg }

// Volume of the whole pipe in m³.
func (l *Loop) Volume() float64 { return l.segVol * float64(l.cfg.Segments) }

func (l *Loop) Initialized() bool { return l.temps != nil }

// Smoothed is the averaged outlet temperature of the last step.
func (l *Loop) Smoothed() float64 { return l.smoothed }

// Profile returns a copy of the segment temperatures, inlet side first.
func (l *Loop) Profile() []float64 {
	if l.temps == nil {
		return nil
	}
	out := make([]float64, len(l.temps))
	copy(out, l.temps)
	return out
}

// Spread is the coldest and the warmest segment temperature.
func (l *Loop) Spread() (float64, float64) {
	if l.temps == nil {
		return math.NaN(), math.NaN()
	}
	return floats.Min(l.temps), floats.Max(l.temps)
}

// Reset drops the state; the next step initializes it again.
func (l *Loop) Reset() {
	l.temps = nil
	l.history = nil
	l.smoothed = 0
}

func validate(in StepInput) error {
	if !(in.Dt > 0) || math.IsInf(in.Dt, 0) {
		return errors.WithMessagef(ErrInvalidInput, "dt %v", in.Dt)
	}
	for _, v := range []float64{in.OutletInit, in.HeatPowerW, in.SinkPowerW} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.WithMessagef(ErrInvalidInput, "non-finite value in %+v", in)
		}
	}
	hasFlow := in.VolumetricFlow != nil && *in.VolumetricFlow > 0
	if hasFlow && math.IsInf(*in.VolumetricFlow, 0) {
		return errors.WithMessage(ErrInvalidInput, "infinite flow")
	}
	if !hasFlow {
		if in.InletTemp == nil {
			return errors.WithMessage(ErrInvalidInput, "neither inlet temperature nor flow given")
		}
		if math.IsNaN(*in.InletTemp) || math.IsInf(*in.InletTemp, 0) {
			return errors.WithMessagef(ErrInvalidInput, "inlet %v", *in.InletTemp)
		}
	}
	return nil
}

// Step advances the loop by in.Dt seconds and returns the smoothed outlet temperature
// with the segment profile.
func (l *Loop) Step(in StepInput) (float64, []float64, error) {
	if err := validate(in); err != nil {
		return l.smoothed, l.Profile(), err
	}

	if l.temps == nil {
		l.temps = make([]float64, l.cfg.Segments)
		for i := range l.temps {
			l.temps[i] = in.OutletInit
		}
		l.smoothed = in.OutletInit
	}

	f := l.cfg.Fluid
	subDt := in.Dt / float64(l.cfg.SubSteps)
	sinkAt := l.cfg.Segments / 2
	capacity := f.Density * l.segVol * f.LoopSpecificHeat
	loss := l.cfg.HeatLossWPerM * l.segLen
	next := make([]float64, len(l.temps))

	for s := 0; s < l.cfg.SubSteps; s++ {
		var flow, inlet float64
		if in.VolumetricFlow != nil && *in.VolumetricFlow > 0 {
			flow = *in.VolumetricFlow
			inlet = in.HeatPowerW/(f.Density*f.SpecificHeat*flow) + l.smoothed
		} else {
			inlet = *in.InletTemp
			if dT := inlet - l.temps[0]; dT != 0 {
				flow = in.HeatPowerW / (f.Density * f.SpecificHeat * dT)
			}
		}

		for i, t := range l.temps {
			upstream := inlet
			if i > 0 {
				upstream = l.temps[i-1]
			}
			sink := 0.0
			if i == sinkAt {
				sink = in.SinkPowerW
			}

			drop := l.lossDrop(t, loss*subDt/capacity)
			if flow > 0 {
				advected := (upstream - t) * flow * f.Density * f.SpecificHeat
				next[i] = t + (advected-sink)*subDt/capacity - drop
			} else {
				next[i] = t - sink*subDt/capacity - drop
			}
		}
		l.temps, next = next, l.temps
	}

	l.record(l.temps[len(l.temps)-1], in.Dt)
	return l.smoothed, l.Profile(), nil
}

// lossDrop is the cooling of a segment at temperature t over one sub-step, limited so
// that losses alone never take it below the ambient.
func (l *Loop) lossDrop(t, drop float64) float64 {
	if l.cfg.AmbientTemp == nil {
		return drop
	}
	return math.Max(0, math.Min(drop, t-*l.cfg.AmbientTemp))
}

// record pushes the raw outlet into the averaging window of SmoothingSeconds/dt samples.
func (l *Loop) record(raw, dt float64) {
	size := int(l.cfg.SmoothingSeconds / dt)
	if size < 1 {
		size = 1
	}
	l.history = append(l.history, raw)
	if over := len(l.history) - size; over > 0 {
		l.history = append(l.history[:0], l.history[over:]...)
	}
	l.smoothed = stat.Mean(l.history, nil)
}
