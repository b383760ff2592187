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

// Package valve regulates the electronic expansion valve of a compressor on the
// discharge superheat.
package valve

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/logger"
)

var ErrInvalidInput = errors.New("invalid valve input")

type Mode int

const (
	// ModeDirect applies the commanded opening verbatim.
	ModeDirect Mode = iota
	// ModeEnvelopeSuperheat steps the valve with hysteresis and wait times.
	ModeEnvelopeSuperheat
	// ModePD runs a proportional-derivative loop on the superheat error.
	ModePD
)

var modeNames = map[Mode]string{
	ModeDirect:            "direct",
	ModeEnvelopeSuperheat: "superheat",
	ModePD:                "pd",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.WithMessagef(ErrInvalidInput, "unknown valve mode %q", s)
}

type Status int

const (
	StatusNormal Status = iota
	StatusWaitingHigh
	StatusWaitingLow
	StatusCriticalHigh
	StatusCriticalLow
	StatusDirect
	StatusPD
	StatusPumpDown
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusWaitingHigh:
		return "waiting-high"
	case StatusWaitingLow:
		return "waiting-low"
	case StatusCriticalHigh:
		return "critical-high"
	case StatusCriticalLow:
		return "critical-low"
	case StatusDirect:
		return "direct"
	case StatusPD:
		return "pd"
	case StatusPumpDown:
		return "pump-down"
	default:
		return "unknown"
	}
}

// Params of the controller. Temperatures and superheat in K or °C, wait times in ticks.
type Params struct {
	SuperheatSetpoint    float64
	TargetSuperheat      float64
	LowThreshold         float64
	HighThreshold        float64
	CriticalLowThreshold float64
	CriticalLowStep      float64
	CriticalDischarge    float64
	CriticalHighStep     float64
	WaitHigh             int
	WaitLow              int
	Kp                   float64
	Kd                   float64
	NominalOpening       float64
}

func DefaultParams() Params {
	return Params{
		SuperheatSetpoint:    10,
		TargetSuperheat:      10,
		LowThreshold:         8,
		HighThreshold:        40,
		CriticalLowThreshold: 3,
		CriticalLowStep:      5,
		CriticalDischarge:    130,
		CriticalHighStep:     5,
		WaitHigh:             300,
		WaitLow:              60,
		Kp:                   -0.05,
		Kd:                   -0.1,
		NominalOpening:       50,
	}
}

// Input of one control tick.
type Input struct {
	Mode              Mode
	DischargeSetpoint float64
	DischargeTemp     float64
	// DirectOpening is required in ModeDirect and ignored otherwise.
	DirectOpening *float64
}

type Controller struct {
	name    string
	p       Params
	opening float64
	status  Status
	// waitTime counts down ticks while waiting.
	waitTime  int
	waiting   bool
	prevError *float64
}

func New(name string, p Params) *Controller {
	return &Controller{name: name, p: p, opening: clampOpening(p.NominalOpening), status: StatusNormal}
}

func (c *Controller) Params() Params   { return c.p }
func (c *Controller) Opening() float64 { return c.opening }
func (c *Controller) Status() Status   { return c.status }
func (c *Controller) WaitTime() int    { return c.waitTime }
func (c *Controller) Waiting() bool    { return c.waiting }

func (c *Controller) validate(in Input) error {
	if _, ok := modeNames[in.Mode]; !ok {
		return errors.WithMessagef(ErrInvalidInput, "mode %d", in.Mode)
	}
	if in.Mode == ModeDirect {
		if in.DirectOpening == nil || !finite(*in.DirectOpening) {
			return errors.WithMessage(ErrInvalidInput, "direct mode without a valid opening")
		}
		return nil
	}
	if !finite(in.DischargeTemp) || !finite(in.DischargeSetpoint) {
		return errors.WithMessagef(
			ErrInvalidInput, "discharge %v setpoint %v", in.DischargeTemp, in.DischargeSetpoint,
		)
	}
	return nil
}

// Run executes one tick and returns the new opening and status. On error nothing changes.
// A pumped-down valve is regulated like any other; callers run it only for running units.
func (c *Controller) Run(in Input) (float64, Status, error) {
	if err := c.validate(in); err != nil {
		return c.opening, c.status, errors.WithMessage(err, c.name)
	}

	next, arm := c.status, 0
	dtc := in.DischargeTemp - in.DischargeSetpoint + c.p.SuperheatSetpoint

	switch {
	case in.Mode == ModeDirect:
		c.opening = clampOpening(*in.DirectOpening)
		c.clearWait()
		next = StatusDirect

	case in.DischargeTemp > c.p.CriticalDischarge:
		c.opening = clampOpening(c.opening + c.p.CriticalHighStep)
		c.trackError(in.Mode, dtc)
		next = StatusCriticalHigh

	case dtc < c.p.CriticalLowThreshold:
		c.opening = clampOpening(c.opening - c.p.CriticalLowStep)
		c.trackError(in.Mode, dtc)
		next = StatusCriticalLow

	case in.Mode == ModePD:
		err := dtc - c.p.TargetSuperheat
		if c.prevError == nil {
			c.prevError = &err
		}
		derivative := err - *c.prevError
		c.opening = clampOpening(c.opening - (c.p.Kp*err + c.p.Kd*derivative))
		c.prevError = &err
		c.clearWait()
		next = StatusPD

	case c.waiting:
		c.waitTime--
		if c.waitTime <= 0 {
			c.clearWait()
			next = StatusNormal
		}

	case dtc >= c.p.HighThreshold:
		c.opening = clampOpening(c.opening + 1)
		next, arm = StatusWaitingHigh, c.p.WaitHigh

	case dtc < c.p.LowThreshold:
		c.opening = clampOpening(c.opening - 1)
		next, arm = StatusWaitingLow, c.p.WaitLow

	default:
		next = StatusNormal
	}

	if next != c.status {
		logger.L().Debugf("valve %s: %v -> %v at opening %.1f, dtc %.1f", c.name, c.status, next, c.opening, dtc)
		c.status = next
		c.clearWait()
	}
	if arm > 0 {
		c.waitTime = arm
		c.waiting = true
	}

	return c.opening, c.status, nil
}

// PumpDown closes the valve for a compressor stop.
func (c *Controller) PumpDown() {
	c.opening = 0
	c.status = StatusPumpDown
	c.clearWait()
	c.prevError = nil
}

// StartUp returns the valve to its nominal opening for a compressor start.
func (c *Controller) StartUp() {
	c.opening = clampOpening(c.p.NominalOpening)
	c.status = StatusNormal
	c.clearWait()
	c.prevError = nil
}

// trackError keeps the PD history current while a safety override holds the valve.
func (c *Controller) trackError(mode Mode, dtc float64) {
	if mode == ModePD {
		err := dtc - c.p.TargetSuperheat
		c.prevError = &err
	}
}

func (c *Controller) clearWait() {
	c.waitTime = 0
	c.waiting = false
}

func clampOpening(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
