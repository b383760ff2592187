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

// Package compressor provides the unit level abstraction the cascade and the plant
// work with: a compressor that can predict its heat output across its speed range and
// evaluate its performance at an operating point.
package compressor

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/dataset"
	"github.com/antst/hpcascade/internal/envelope"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/performance"
)

var ErrConfiguration = errors.New("invalid compressor configuration")

// Ambient is the outdoor air condition the heat source works against.
type Ambient struct {
	Temperature float64
	Humidity    float64
}

// SpeedPower is one row of a prediction table: speed in rps, heat power in kW.
type SpeedPower struct {
	Speed float64
	Power float64
}

// CompressorLike is what the dispatcher needs from a compressor.
type CompressorLike interface {
	// Predict returns the heat power per speed step, ascending by speed.
	Predict(amb Ambient) []SpeedPower
	Evaluate(speed, tsuc, tcon float64) performance.Result
}

// Protected is implemented by compressors carrying an operating envelope.
type Protected interface {
	Limit(st *State, evap, cond, speed float64) (float64, error)
}

// State of one compressor. Runtime and LastStart are measured on the plant clock.
type State struct {
	Speed     float64
	Running   bool
	Runtime   time.Duration
	LastStart time.Duration
	Faulted   bool
	envelope.Counters
}

// Operating describes where the compressor works relative to the ambient and how its
// speed range is tabulated.
type Operating struct {
	// EvapApproach is the difference between air and evaporating temperature, K.
	EvapApproach float64
	// CondensingTemp is the condensing temperature, °C.
	CondensingTemp float64
	MinSpeed       float64
	MaxSpeed       float64
	SpeedStep      float64
	// PowerScale converts model output to the dispatcher unit (W to kW by default).
	PowerScale float64
}

func (op *Operating) fillDefaults(lo, hi float64) {
	if op.MinSpeed == 0 {
		op.MinSpeed = lo
	}
	if op.MaxSpeed == 0 {
		op.MaxSpeed = hi
	}
	if op.SpeedStep == 0 {
		op.SpeedStep = 10
	}
	if op.PowerScale == 0 {
		op.PowerScale = 1e-3
	}
}

// Point returns evaporating and condensing temperature for the given ambient.
func (op Operating) Point(amb Ambient) (float64, float64) {
	return amb.Temperature - op.EvapApproach, op.CondensingTemp
}

// Speeds tabulates the speed steps from MinSpeed to MaxSpeed, both included.
func (op Operating) Speeds() []float64 {
	if op.SpeedStep <= 0 || op.MaxSpeed < op.MinSpeed {
		return nil
	}
	n := int(math.Floor((op.MaxSpeed-op.MinSpeed)/op.SpeedStep+1e-9)) + 1
	speeds := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		speeds = append(speeds, op.MinSpeed+float64(i)*op.SpeedStep)
	}
	if last := speeds[len(speeds)-1]; last < op.MaxSpeed {
		speeds = append(speeds, op.MaxSpeed)
	}
	return speeds
}

// Unit is a compressor described by a polynomial performance map and an envelope.
type Unit struct {
	name     string
	envelope *envelope.Map
	model    *performance.Model
	op       Operating
}

func NewUnit(name string, env *envelope.Map, model *performance.Model, op Operating) (*Unit, error) {
	if env == nil || model == nil {
		return nil, errors.WithMessagef(ErrConfiguration, "%s: envelope and model are required", name)
	}
	op.fillDefaults(0, 0)
	if op.MinSpeed <= 0 || op.MaxSpeed < op.MinSpeed || op.SpeedStep < 0 {
		return nil, errors.WithMessagef(
			ErrConfiguration, "%s: speed range [%v, %v] step %v", name, op.MinSpeed, op.MaxSpeed, op.SpeedStep,
		)
	}
	return &Unit{name: name, envelope: env, model: model, op: op}, nil
}

// FromDataset builds a unit from a loaded dataset. Unset speed limits are taken from
// the envelope.
func FromDataset(name string, ds *dataset.Dataset, shutdownThreshold int, op Operating) (*Unit, error) {
	env, err := ds.Envelope(shutdownThreshold)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	coeff, err := ds.Coefficients()
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	lo, hi := ds.SpeedRange()
	op.fillDefaults(lo, hi)
	return NewUnit(name, env, performance.NewModel(coeff), op)
}

func (u *Unit) Name() string { return u.name }

func (u *Unit) Operating() Operating { return u.op }

func (u *Unit) Envelope() *envelope.Map { return u.envelope }

// Predict evaluates heat output over the speed steps at the operating point implied by
// the ambient. When the point is inside the envelope, steps outside its speed range are
// left out.
func (u *Unit) Predict(amb Ambient) []SpeedPower {
	evap, cond := u.op.Point(amb)
	bounds, inside := u.envelope.Classify(evap, cond)

	speeds := u.op.Speeds()
	table := make([]SpeedPower, 0, len(speeds))
	for _, s := range speeds {
		if inside && (s < bounds.MinSpeed || s > bounds.MaxSpeed) {
			continue
		}
		r := u.model.Evaluate(s, evap, cond)
		table = append(table, SpeedPower{Speed: s, Power: r.HeatOutput * u.op.PowerScale})
	}
	if len(table) == 0 {
		logger.L().Warnf("%s: no speed step inside [%v, %v] at evap %.1f cond %.1f",
			u.name, bounds.MinSpeed, bounds.MaxSpeed, evap, cond)
	}
	return table
}

func (u *Unit) Evaluate(speed, tsuc, tcon float64) performance.Result {
	return u.model.Evaluate(speed, tsuc, tcon)
}

// Limit clamps the requested speed to the envelope and records it on the state.
func (u *Unit) Limit(st *State, evap, cond, speed float64) (float64, error) {
	limited, err := u.envelope.ClampSpeed(&st.Counters, evap, cond, speed)
	if err != nil {
		return limited, errors.WithMessage(err, u.name)
	}
	if limited != speed {
		logger.L().Debugf("%s: speed %.1f limited to %.1f at evap %.1f cond %.1f", u.name, speed, limited, evap, cond)
	}
	st.Speed = limited
	return limited, nil
}
