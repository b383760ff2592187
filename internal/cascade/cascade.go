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

// Package cascade decides which compressor units of a plant run, and at what speed,
// to cover a heat demand.
package cascade

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/compressor"
	"github.com/antst/hpcascade/internal/envelope"
	"github.com/antst/hpcascade/internal/logger"
)

var (
	ErrInvalidInput  = errors.New("invalid dispatcher input")
	ErrConfiguration = errors.New("invalid dispatcher configuration")
	ErrUnknownUnit   = errors.New("unknown unit")
)

// Unit is one dispatchable compressor. State is owned by the dispatcher; read it through
// Snapshot.
type Unit struct {
	ID    int
	Name  string
	Model compressor.CompressorLike
	State compressor.State
}

// Selection is one unit commanded to run at Speed.
type Selection struct {
	UnitID int
	Speed  float64
}

// UnitStatus is the externally visible part of a unit state.
type UnitStatus struct {
	ID        int
	Name      string
	Running   bool
	Faulted   bool
	Speed     float64
	Runtime   time.Duration
	LastStart time.Duration
}

type Snapshot []UnitStatus

type Dispatcher struct {
	units []*Unit
}

// New takes ownership of the units. IDs are their positions.
func New(units []*Unit) (*Dispatcher, error) {
	if len(units) == 0 {
		return nil, errors.WithMessage(ErrConfiguration, "no units")
	}
	for i, u := range units {
		if u == nil || u.Model == nil {
			return nil, errors.WithMessagef(ErrConfiguration, "unit %d has no compressor", i)
		}
		u.ID = i
	}
	return &Dispatcher{units: units}, nil
}

func (d *Dispatcher) Len() int { return len(d.units) }

// Unit returns the unit with the given id.
func (d *Dispatcher) Unit(id int) (*Unit, error) {
	if id < 0 || id >= len(d.units) {
		return nil, errors.WithMessagef(ErrUnknownUnit, "id %d", id)
	}
	return d.units[id], nil
}

// Restore seeds the cumulative runtime, e.g. from persisted state. Only valid before
// the unit first runs.
func (d *Dispatcher) Restore(id int, runtime time.Duration, outOfEnvelope int) error {
	u, err := d.Unit(id)
	if err != nil {
		return err
	}
	if u.State.Running {
		return errors.Errorf("unit %d is running, cannot restore its state", id)
	}
	u.State.Runtime = runtime
	u.State.OutOfEnvelope = outOfEnvelope
	return nil
}

func validDemand(demand float64) bool {
	return !math.IsNaN(demand) && !math.IsInf(demand, 0) && demand >= 0
}

// Select picks units and speeds for the demand (kW). It does not change any state.
func (d *Dispatcher) Select(demand float64, amb compressor.Ambient) ([]Selection, error) {
	if !validDemand(demand) {
		return nil, errors.WithMessagef(ErrInvalidInput, "demand %v", demand)
	}

	if len(d.units) == 1 {
		return d.selectSingle(demand, amb), nil
	}
	return d.selectMulti(demand, amb), nil
}

// selectSingle takes the lowest speed reaching the demand, else the highest speed.
func (d *Dispatcher) selectSingle(demand float64, amb compressor.Ambient) []Selection {
	u := d.units[0]
	if u.State.Faulted {
		return nil
	}
	table := u.Model.Predict(amb)
	if len(table) == 0 {
		return nil
	}
	for _, sp := range table {
		if sp.Power >= demand {
			return []Selection{{UnitID: u.ID, Speed: sp.Speed}}
		}
	}
	return []Selection{{UnitID: u.ID, Speed: table[len(table)-1].Speed}}
}

// selectMulti keeps the single running unit closest to the demand and, if that is not
// enough, adds stopped units, least runtime first.
func (d *Dispatcher) selectMulti(demand float64, amb compressor.Ambient) []Selection {
	var running, stopped []*Unit
	for _, u := range d.units {
		switch {
		case u.State.Faulted:
		case u.State.Running:
			running = append(running, u)
		default:
			stopped = append(stopped, u)
		}
	}

	var selection []Selection
	total := 0.0
	bestDiff := math.Inf(1)
	for _, u := range running {
		for _, sp := range u.Model.Predict(amb) {
			if diff := math.Abs(demand - sp.Power); diff < bestDiff {
				bestDiff = diff
				selection = []Selection{{UnitID: u.ID, Speed: sp.Speed}}
				total = sp.Power
			}
		}
	}

	if total >= demand {
		return selection
	}

	sort.SliceStable(stopped, func(i, j int) bool { return stopped[i].State.Runtime < stopped[j].State.Runtime })
	for _, u := range stopped {
		table := u.Model.Predict(amb)
		if len(table) == 0 {
			continue
		}
		for _, sp := range table {
			if total+sp.Power > demand {
				return append(selection, Selection{UnitID: u.ID, Speed: sp.Speed})
			}
		}
		top := table[len(table)-1]
		selection = append(selection, Selection{UnitID: u.ID, Speed: top.Speed})
		total += top.Power
	}

	logger.L().Debugf("cascade exhausted: %.2f kW of %.2f kW demand", total, demand)
	return selection
}

// Apply starts selected units that are stopped and stops running units that are not
// selected. Units whose running state is unchanged are left untouched.
func (d *Dispatcher) Apply(selection []Selection, now time.Duration) Snapshot {
	selected := make(map[int]float64, len(selection))
	for _, s := range selection {
		selected[s.UnitID] = s.Speed
	}

	for _, u := range d.units {
		speed, ok := selected[u.ID]
		switch {
		case ok && !u.State.Running:
			u.State.Running = true
			u.State.LastStart = now
			u.State.Speed = speed
			logger.L().Infof("unit %s started at %.1f rps", u.label(), speed)
		case ok:
			u.State.Speed = speed
		case u.State.Running:
			d.stop(u, now)
		}
	}

	return d.Snapshot()
}

// Run selects and applies in one step.
func (d *Dispatcher) Run(demand float64, amb compressor.Ambient, now time.Duration) ([]Selection, Snapshot, error) {
	sel, err := d.Select(demand, amb)
	if err != nil {
		return nil, nil, err
	}
	return sel, d.Apply(sel, now), nil
}

// Stop forces a unit off. With fault set the unit is excluded from selection until
// Reset.
func (d *Dispatcher) Stop(id int, now time.Duration, fault bool) error {
	u, err := d.Unit(id)
	if err != nil {
		return err
	}
	if u.State.Running {
		d.stop(u, now)
	}
	if fault && !u.State.Faulted {
		u.State.Faulted = true
		logger.L().Warnf("unit %s marked faulted", u.label())
	}
	return nil
}

// Reset clears a fault and the consecutive out of envelope counter.
func (d *Dispatcher) Reset(id int) error {
	u, err := d.Unit(id)
	if err != nil {
		return err
	}
	u.State.Faulted = false
	u.State.ConsecutiveOutOfEnvelope = 0
	return nil
}

func (d *Dispatcher) stop(u *Unit, now time.Duration) {
	u.State.Running = false
	u.State.Runtime += now - u.State.LastStart
	u.State.LastStart = 0
	u.State.Speed = 0
	logger.L().Infof("unit %s stopped, runtime %v", u.label(), u.State.Runtime)
}

func (d *Dispatcher) Snapshot() Snapshot {
	s := make(Snapshot, len(d.units))
	for i, u := range d.units {
		s[i] = UnitStatus{
			ID:        u.ID,
			Name:      u.Name,
			Running:   u.State.Running,
			Faulted:   u.State.Faulted,
			Speed:     u.State.Speed,
			Runtime:   u.State.Runtime,
			LastStart: u.State.LastStart,
		}
	}
	return s
}

// Clamp limits the commanded speed of a unit to its envelope at the given operating
// point. Units without an envelope keep their speed.
func (d *Dispatcher) Clamp(id int, evap, cond float64) (float64, error) {
	u, err := d.Unit(id)
	if err != nil {
		return 0, err
	}
	p, ok := u.Model.(compressor.Protected)
	if !ok {
		return u.State.Speed, nil
	}
	return p.Limit(&u.State, evap, cond, u.State.Speed)
}

// Counters returns the envelope counters of a unit.
func (d *Dispatcher) Counters(id int) (envelope.Counters, error) {
	u, err := d.Unit(id)
	if err != nil {
		return envelope.Counters{}, err
	}
	return u.State.Counters, nil
}

// Power sums the predicted power of a selection.
func (d *Dispatcher) Power(selection []Selection, amb compressor.Ambient) float64 {
	total := 0.0
	for _, s := range selection {
		if s.UnitID < 0 || s.UnitID >= len(d.units) {
			continue
		}
		for _, sp := range d.units[s.UnitID].Model.Predict(amb) {
			if sp.Speed == s.Speed {
				total += sp.Power
				break
			}
		}
	}
	return total
}

func (u *Unit) label() string {
	if u.Name != "" {
		return u.Name
	}
	return "#" + strconv.Itoa(u.ID)
}
