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

// Package plant runs the control cycle of a cascade heat pump plant: demand filtering,
// dispatch, envelope protection, performance, valve control and the hydraulic loop, in
// that order.
package plant

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/cascade"
	"github.com/antst/hpcascade/internal/compressor"
	"github.com/antst/hpcascade/internal/envelope"
	"github.com/antst/hpcascade/internal/hydraulics"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/performance"
	"github.com/antst/hpcascade/internal/valve"
)

var (
	ErrInvalidInput  = errors.New("invalid plant request")
	ErrConfiguration = errors.New("invalid plant configuration")
)

type UnitSpec struct {
	Name       string
	Compressor compressor.CompressorLike
	Operating  compressor.Operating
	Valve      valve.Params
}

type Config struct {
	Units             []UnitSpec
	KTime             float64
	NominalCOP        float64
	ValveMode         valve.Mode
	DischargeSetpoint float64
	Hydraulics        hydraulics.Config
}

// Request of one cycle. Demand is thermal power in kW; ElectricalCap (kW) is used
// when Demand is nil.
type Request struct {
	Demand         *float64
	ElectricalCap  *float64
	Ambient        compressor.Ambient
	Now            time.Duration
	Dt             time.Duration
	InletTemp      *float64
	OutletInit     float64
	VolumetricFlow *float64
	SinkPowerW     float64
}

type UnitReport struct {
	cascade.UnitStatus
	Evap        float64
	Cond        float64
	Performance performance.Result
	Opening     float64
	ValveStatus valve.Status
	Counters    envelope.Counters
	Err         error
}

type Report struct {
	Now              time.Duration
	Demand           float64
	Selection        []cascade.Selection
	Units            []UnitReport
	HeatOutputW      float64
	ElectricalPowerW float64
	COP              float64
	Outlet           float64
	Profile          []float64
	LoopErr          error
	// DispatchErr is set when selection failed; the units then keep their previous state.
	DispatchErr error
}

// Faults lists the unit and loop errors of the cycle.
func (r *Report) Faults() []error {
	var errs []error
	if r.DispatchErr != nil {
		errs = append(errs, r.DispatchErr)
	}
	for _, u := range r.Units {
		if u.Err != nil {
			errs = append(errs, u.Err)
		}
	}
	if r.LoopErr != nil {
		errs = append(errs, r.LoopErr)
	}
	return errs
}

// Plant is not safe for concurrent use; the caller serializes cycles and setters.
type Plant struct {
	dispatcher        *cascade.Dispatcher
	valves            []*valve.Controller
	ops               []compressor.Operating
	filter            *DemandFilter
	loop              *hydraulics.Loop
	valveMode         valve.Mode
	dischargeSetpoint float64
	directOpening     *float64
	enabled           bool
}

func New(cfg Config) (*Plant, error) {
	if len(cfg.Units) == 0 {
		return nil, errors.WithMessage(ErrConfiguration, "no units")
	}

	units := make([]*cascade.Unit, len(cfg.Units))
	p := &Plant{
		valves:            make([]*valve.Controller, len(cfg.Units)),
		ops:               make([]compressor.Operating, len(cfg.Units)),
		filter:            NewDemandFilter(cfg.KTime, cfg.NominalCOP),
		valveMode:         cfg.ValveMode,
		dischargeSetpoint: cfg.DischargeSetpoint,
		enabled:           true,
	}
	for i, u := range cfg.Units {
		units[i] = &cascade.Unit{Name: u.Name, Model: u.Compressor}
		if u.Valve == (valve.Params{}) {
			u.Valve = valve.DefaultParams()
		}
		p.valves[i] = valve.New(u.Name, u.Valve)
		p.ops[i] = u.Operating
	}

	var err error
	if p.dispatcher, err = cascade.New(units); err != nil {
		return nil, err
	}
	if p.loop, err = hydraulics.New(cfg.Hydraulics); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plant) Dispatcher() *cascade.Dispatcher { return p.dispatcher }

func (p *Plant) Loop() *hydraulics.Loop { return p.loop }

func (p *Plant) Valve(id int) *valve.Controller { return p.valves[id] }

func (p *Plant) Enabled() bool { return p.enabled }

// SetEnabled switches the plant on or off; a disabled plant stops every unit on the
// next cycle.
func (p *Plant) SetEnabled(on bool) { p.enabled = on }

func (p *Plant) ValveMode() valve.Mode { return p.valveMode }

func (p *Plant) SetValveMode(m valve.Mode) { p.valveMode = m }

// SetDirectOpening sets the opening used in direct valve mode.
func (p *Plant) SetDirectOpening(v float64) { p.directOpening = &v }

func (p *Plant) SetDischargeSetpoint(v float64) { p.dischargeSetpoint = v }

func (p *Plant) DemandFilter() *DemandFilter { return p.filter }

// Cycle runs one control cycle. Only an invalid request fails the call; unit and loop
// failures are reported per unit and never stop the other units.
func (p *Plant) Cycle(req Request) (Report, error) {
	if !(req.Dt > 0) {
		return Report{}, errors.WithMessagef(ErrInvalidInput, "dt %v", req.Dt)
	}
	if math.IsNaN(req.Ambient.Temperature) || math.IsInf(req.Ambient.Temperature, 0) {
		return Report{}, errors.WithMessagef(ErrInvalidInput, "ambient %v", req.Ambient.Temperature)
	}

	target := p.filter.Target(req.Demand, req.ElectricalCap)
	if !p.enabled {
		target = 0
	}
	before := p.dispatcher.Snapshot()
	demand, err := p.filter.Update(target)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Now: req.Now, Demand: demand}
	if p.enabled {
		rep.Selection, _, rep.DispatchErr = p.dispatcher.Run(demand, req.Ambient, req.Now)
		if rep.DispatchErr != nil {
			logger.L().Errorf("dispatch: %v", rep.DispatchErr)
		}
	} else {
		p.dispatcher.Apply(nil, req.Now)
	}

	after := p.dispatcher.Snapshot()
	for i := range after {
		switch {
		case after[i].Running && !before[i].Running:
			p.valves[i].StartUp()
		case !after[i].Running && before[i].Running:
			p.valves[i].PumpDown()
		}
	}

	rep.Units = make([]UnitReport, len(after))
	for i, st := range after {
		ur := &rep.Units[i]
		ur.UnitStatus = st
		if st.Running {
			p.runUnit(i, req, ur)
			rep.HeatOutputW += ur.Performance.HeatOutput
			rep.ElectricalPowerW += ur.Performance.ElectricalPower
		}
		ur.Opening = p.valves[i].Opening()
		ur.ValveStatus = p.valves[i].Status()
		ur.Counters, _ = p.dispatcher.Counters(i)
	}
	if rep.ElectricalPowerW > 0 {
		rep.COP = rep.HeatOutputW / rep.ElectricalPowerW
	}

	rep.Outlet, rep.Profile, rep.LoopErr = p.loop.Step(hydraulics.StepInput{
		InletTemp:      req.InletTemp,
		OutletInit:     req.OutletInit,
		Dt:             req.Dt.Seconds(),
		HeatPowerW:     rep.HeatOutputW,
		VolumetricFlow: req.VolumetricFlow,
		SinkPowerW:     req.SinkPowerW,
	})
	if rep.LoopErr != nil {
		logger.L().Errorf("hydraulic loop: %v", rep.LoopErr)
	}

	return rep, nil
}

// runUnit protects, evaluates and regulates one running unit. A protective shutdown
// stops and faults the unit.
func (p *Plant) runUnit(id int, req Request, ur *UnitReport) {
	ur.Evap, ur.Cond = p.ops[id].Point(req.Ambient)

	speed, err := p.dispatcher.Clamp(id, ur.Evap, ur.Cond)
	if err != nil {
		ur.Err = err
		if errors.Is(err, envelope.ErrProtectiveShutdown) {
			logger.L().Errorf("unit %s: %v", ur.Name, err)
			if err := p.dispatcher.Stop(id, req.Now, true); err != nil {
				logger.L().Error(err)
			}
			p.valves[id].PumpDown()
			ur.UnitStatus = p.dispatcher.Snapshot()[id]
		}
		return
	}
	ur.Speed = speed

	u, _ := p.dispatcher.Unit(id)
	ur.Performance = u.Model.Evaluate(speed, ur.Evap, ur.Cond)

	in := valve.Input{
		Mode:              p.valveMode,
		DischargeSetpoint: p.dischargeSetpoint,
		DischargeTemp:     ur.Performance.DischargeTemp,
		DirectOpening:     p.directOpening,
	}
	if _, _, err := p.valves[id].Run(in); err != nil {
		ur.Err = err
		logger.L().Warnf("unit %s valve: %v", ur.Name, err)
	}
}

// Restore seeds persisted unit state before the first cycle.
func (p *Plant) Restore(id int, runtime time.Duration, outOfEnvelope int) error {
	return p.dispatcher.Restore(id, runtime, outOfEnvelope)
}
