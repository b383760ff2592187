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

// Package performance evaluates the manufacturer polynomial maps of a compressor.
package performance

import (
	"github.com/pkg/errors"
)

const (
	// BlockSize is the number of coefficients of one polynomial.
	BlockSize = 30
	// LegacyLength is a dataset without a dedicated shaft power block.
	LegacyLength = 5 * BlockSize
	// FullLength carries all six blocks.
	FullLength = 6 * BlockSize

	maxSpeedPower = 2
	maxTempPower  = 3
)

// Offsets of each block inside a flat coefficient array.
const (
	OffsetHeatCapacity    = 0
	OffsetElectricalPower = 30
	OffsetCurrent         = 60
	OffsetMassFlow        = 90
	OffsetDischargeTemp   = 120
	OffsetShaftPower      = 150
)

var ErrConfiguration = errors.New("invalid performance coefficients")

// Term exponents of speed, suction and condensing temperature, in coefficient order.
var (
	mTermsN   = [BlockSize]int{0, 0, 0, 0, 0, 2, 2, 2, 1, 1, 1, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2}
	mTermsSuc = [BlockSize]int{0, 1, 0, 2, 0, 1, 2, 1, 1, 2, 1, 1, 2, 1, 3, 0, 0, 1, 0, 2, 0, 3, 0, 0, 1, 0, 2, 0, 3, 0}
	mTermsCon = [BlockSize]int{0, 0, 1, 0, 2, 1, 1, 2, 1, 1, 2, 1, 1, 2, 0, 3, 0, 0, 1, 0, 2, 0, 3, 0, 0, 1, 0, 2, 0, 3}
)

// Polynomial is one 30-coefficient block.
type Polynomial [BlockSize]float64

type powers struct {
	n   [maxSpeedPower + 1]float64
	suc [maxTempPower + 1]float64
	con [maxTempPower + 1]float64
}

func newPowers(speed, tsuc, tcon float64) *powers {
	p := &powers{}
	p.n[0], p.suc[0], p.con[0] = 1.0, 1.0, 1.0
	p.n[1], p.suc[1], p.con[1] = speed, tsuc, tcon
	p.n[2] = speed * speed
	for i := 2; i <= maxTempPower; i++ {
		p.suc[i] = p.suc[i-1] * tsuc
		p.con[i] = p.con[i-1] * tcon
	}
	return p
}

func (c *Polynomial) eval(p *powers) float64 {
	v := 0.0
	for i := 0; i < BlockSize; i++ {
		v += c[i] * p.n[mTermsN[i]] * p.suc[mTermsSuc[i]] * p.con[mTermsCon[i]]
	}
	return v
}

// Evaluate computes the polynomial at a single operating point.
func (c *Polynomial) Evaluate(speed, tsuc, tcon float64) float64 {
	return c.eval(newPowers(speed, tsuc, tcon))
}

// Coefficients holds the six maps of one compressor model.
type Coefficients struct {
	HeatCapacity    Polynomial
	ElectricalPower Polynomial
	Current         Polynomial
	ShaftPower      Polynomial
	MassFlow        Polynomial
	DischargeTemp   Polynomial
}

// CoefficientsFromFlat slices a flat dataset array into blocks. A legacy array of
// LegacyLength values has no shaft power block; electrical power is used in its place.
func CoefficientsFromFlat(data []float64) (*Coefficients, error) {
	if len(data) < LegacyLength {
		return nil, errors.WithMessagef(
			ErrConfiguration, "%d coefficients, at least %d required", len(data), LegacyLength,
		)
	}

	c := &Coefficients{}
	copy(c.HeatCapacity[:], data[OffsetHeatCapacity:])
	copy(c.ElectricalPower[:], data[OffsetElectricalPower:])
	copy(c.Current[:], data[OffsetCurrent:])
	copy(c.MassFlow[:], data[OffsetMassFlow:])
	copy(c.DischargeTemp[:], data[OffsetDischargeTemp:])

	switch {
	case len(data) >= FullLength:
		copy(c.ShaftPower[:], data[OffsetShaftPower:])
	case len(data) == LegacyLength:
		c.ShaftPower = c.ElectricalPower
	default:
		return nil, errors.WithMessagef(
			ErrConfiguration, "%d coefficients: truncated shaft power block", len(data),
		)
	}

	return c, nil
}

// Flat is the inverse of CoefficientsFromFlat for a full six block layout.
func (c *Coefficients) Flat() []float64 {
	out := make([]float64, FullLength)
	copy(out[OffsetHeatCapacity:], c.HeatCapacity[:])
	copy(out[OffsetElectricalPower:], c.ElectricalPower[:])
	copy(out[OffsetCurrent:], c.Current[:])
	copy(out[OffsetMassFlow:], c.MassFlow[:])
	copy(out[OffsetDischargeTemp:], c.DischargeTemp[:])
	copy(out[OffsetShaftPower:], c.ShaftPower[:])
	return out
}

// Result of one evaluation. Units follow the coefficient set (W, A, kg/s, °C).
type Result struct {
	HeatCapacity    float64
	ElectricalPower float64
	Current         float64
	ShaftPower      float64
	MassFlow        float64
	DischargeTemp   float64
	HeatOutput      float64
	COP             float64
	InverterPower   float64
}

// Model is stateless and safe for concurrent use.
type Model struct {
	coeff Coefficients
}

func NewModel(c *Coefficients) *Model {
	return &Model{coeff: *c}
}

// Evaluate returns the performance at speed (rps) and suction/condensing
// temperature (°C). Non-finite inputs yield non-finite outputs.
func (m *Model) Evaluate(speed, tsuc, tcon float64) Result {
	p := newPowers(speed, tsuc, tcon)

	r := Result{
		HeatCapacity:    m.coeff.HeatCapacity.eval(p),
		ElectricalPower: m.coeff.ElectricalPower.eval(p),
		Current:         m.coeff.Current.eval(p),
		ShaftPower:      m.coeff.ShaftPower.eval(p),
		MassFlow:        m.coeff.MassFlow.eval(p),
		DischargeTemp:   m.coeff.DischargeTemp.eval(p),
	}

	r.HeatOutput = r.HeatCapacity + r.ShaftPower
	if r.ElectricalPower != 0 {
		r.COP = r.HeatOutput / r.ElectricalPower
	}
	r.InverterPower = r.ElectricalPower - r.ShaftPower

	return r
}
