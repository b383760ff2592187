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

package compressor

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/performance"
)

// Table is a compressor known only by a fixed speed/power table, for units the
// manufacturer publishes no polynomial map for.
type Table struct {
	entries []SpeedPower
	// cop is the nominal coefficient of performance used to derive electrical power.
	cop           float64
	dischargeTemp float64
}

// NewTable sorts entries by speed. Power is in kW.
func NewTable(entries []SpeedPower, cop, dischargeTemp float64) (*Table, error) {
	if len(entries) == 0 {
		return nil, errors.WithMessage(ErrConfiguration, "empty speed table")
	}
	if cop < 0 {
		return nil, errors.WithMessagef(ErrConfiguration, "negative cop %v", cop)
	}
	t := &Table{entries: make([]SpeedPower, len(entries)), cop: cop, dischargeTemp: dischargeTemp}
	copy(t.entries, entries)
	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].Speed < t.entries[j].Speed })
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].Speed == t.entries[i-1].Speed {
			return nil, errors.WithMessagef(ErrConfiguration, "duplicate speed %v", t.entries[i].Speed)
		}
	}
	return t, nil
}

// Predict ignores the ambient: the table is the same in every condition.
func (t *Table) Predict(Ambient) []SpeedPower {
	out := make([]SpeedPower, len(t.entries))
	copy(out, t.entries)
	return out
}

// Evaluate interpolates the heat power linearly between table rows and reports it in W.
func (t *Table) Evaluate(speed, _, _ float64) performance.Result {
	heat := t.power(speed) * 1e3
	r := performance.Result{
		HeatCapacity:  heat,
		HeatOutput:    heat,
		DischargeTemp: t.dischargeTemp,
	}
	if t.cop > 0 {
		r.ElectricalPower = heat / t.cop
		r.COP = t.cop
	}
	return r
}

func (t *Table) power(speed float64) float64 {
	e := t.entries
	if speed <= e[0].Speed {
		return e[0].Power
	}
	i := sort.Search(len(e), func(i int) bool { return e[i].Speed >= speed })
	if i == len(e) {
		return e[len(e)-1].Power
	}
	lo, hi := e[i-1], e[i]
	return lo.Power + (hi.Power-lo.Power)*(speed-lo.Speed)/(hi.Speed-lo.Speed)
}
