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

package plant

import (
	"math"

	"github.com/pkg/errors"
)

const (
	DefaultKTime      = 5.0
	DefaultNominalCOP = 3.0
)

// DemandFilter is a first order lag on the requested heat power, so a step in the
// demand ramps the cascade up over a few cycles.
type DemandFilter struct {
	ktime      float64
	nominalCOP float64
	value      float64
}

// NewDemandFilter takes the time constant in cycles; values below 1 are raised to 1,
// which disables the lag.
func NewDemandFilter(ktime, nominalCOP float64) *DemandFilter {
	if ktime == 0 {
		ktime = DefaultKTime
	}
	if nominalCOP <= 0 {
		nominalCOP = DefaultNominalCOP
	}
	return &DemandFilter{ktime: math.Max(1, ktime), nominalCOP: nominalCOP}
}

// Target turns a request into thermal power (kW). A thermal demand wins over an
// electrical cap, which is converted with the nominal COP.
func (f *DemandFilter) Target(thermal, electricalCap *float64) float64 {
	switch {
	case thermal != nil:
		return *thermal
	case electricalCap != nil:
		return *electricalCap * f.nominalCOP
	default:
		return 0
	}
}

// Update moves the filtered demand one cycle towards target.
func (f *DemandFilter) Update(target float64) (float64, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return f.value, errors.WithMessagef(ErrInvalidInput, "demand %v", target)
	}
	f.value = math.Max(0, f.value+(target-f.value)/f.ktime)
	return f.value, nil
}

func (f *DemandFilter) Value() float64 { return f.value }

func (f *DemandFilter) Reset(v float64) { f.value = math.Max(0, v) }
