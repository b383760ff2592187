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

package valve

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const setpoint = 80.0

// superheat input; dtc is temp - 70 with the default superheat setpoint
func sh(temp float64) Input {
	return Input{Mode: ModeEnvelopeSuperheat, DischargeSetpoint: setpoint, DischargeTemp: temp}
}

func pd(temp float64) Input {
	return Input{Mode: ModePD, DischargeSetpoint: setpoint, DischargeTemp: temp}
}

func direct(opening float64) Input {
	return Input{Mode: ModeDirect, DischargeSetpoint: setpoint, DischargeTemp: 90, DirectOpening: &opening}
}

func run(t *testing.T, c *Controller, in Input) (float64, Status) {
	t.Helper()
	opening, status, err := c.Run(in)
	require.NoError(t, err)
	return opening, status
}

func TestSuperheatBands(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		opening float64
		status  Status
		wait    int
	}{
		{"normal band", 95, 50, StatusNormal, 0},
		{"just above low threshold", 78, 50, StatusNormal, 0},
		{"high superheat", 121, 51, StatusWaitingHigh, 300},
		{"high threshold", 110, 51, StatusWaitingHigh, 300},
		{"low superheat", 76, 49, StatusWaitingLow, 60},
		{"critical low", 72, 45, StatusCriticalLow, 0},
		{"critical high", 135, 55, StatusCriticalHigh, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("exv1", DefaultParams())
			opening, status := run(t, c, sh(tt.temp))
			assert.Equal(t, tt.opening, opening)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.wait, c.WaitTime())
			assert.Equal(t, tt.wait > 0, c.Waiting())
		})
	}
}

func TestWaitCountdown(t *testing.T) {
	c := New("exv1", DefaultParams())

	opening, status := run(t, c, sh(76))
	require.Equal(t, StatusWaitingLow, status)
	require.Equal(t, 49.0, opening)

	// no movement while the timer runs down
	for i := 59; i >= 1; i-- {
		opening, status = run(t, c, sh(76))
		assert.Equal(t, 49.0, opening)
		assert.Equal(t, StatusWaitingLow, status)
		assert.Equal(t, i, c.WaitTime())
	}

	_, status = run(t, c, sh(76))
	assert.Equal(t, StatusNormal, status)
	assert.False(t, c.Waiting())
	assert.Zero(t, c.WaitTime())

	opening, status = run(t, c, sh(76))
	assert.Equal(t, 48.0, opening)
	assert.Equal(t, StatusWaitingLow, status)
	assert.Equal(t, 60, c.WaitTime())
}

func TestCriticalHighOverridesEverything(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Controller)
		in    Input
	}{
		{"superheat mode", func(*Controller) {}, sh(135)},
		{"pd mode", func(c *Controller) { run(t, c, pd(100)) }, pd(135)},
		{"waiting high", func(c *Controller) { run(t, c, sh(121)); run(t, c, sh(121)) }, sh(135)},
		{"waiting low", func(c *Controller) { run(t, c, sh(76)) }, sh(135)},
		{"critical low", func(c *Controller) { run(t, c, sh(72)) }, sh(135)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("exv1", DefaultParams())
			tt.setup(c)
			before := c.Opening()

			opening, status := run(t, c, tt.in)
			assert.Equal(t, before+5, opening)
			assert.Equal(t, StatusCriticalHigh, status)
			assert.False(t, c.Waiting())
			assert.Zero(t, c.WaitTime())
		})
	}
}

func TestCriticalHighClampsAtFullyOpen(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, direct(98))

	opening, _ := run(t, c, sh(135))
	assert.Equal(t, 100.0, opening)
	opening, _ = run(t, c, sh(135))
	assert.Equal(t, 100.0, opening)
}

func TestStatusChangeClearsWait(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, sh(121))
	run(t, c, sh(121))
	require.Equal(t, 299, c.WaitTime())

	// critical low interrupts the wait
	opening, status := run(t, c, sh(72))
	assert.Equal(t, StatusCriticalLow, status)
	assert.Equal(t, 46.0, opening)
	assert.Zero(t, c.WaitTime())
	assert.False(t, c.Waiting())

	// back in band
	_, status = run(t, c, sh(95))
	assert.Equal(t, StatusNormal, status)
	assert.Zero(t, c.WaitTime())
}

func TestDirectMode(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, sh(121))

	opening, status := run(t, c, direct(70))
	assert.Equal(t, 70.0, opening)
	assert.Equal(t, StatusDirect, status)
	assert.False(t, c.Waiting())
	assert.Zero(t, c.WaitTime())

	// direct commands are taken as is, even on a hot discharge
	in := direct(20)
	in.DischargeTemp = 140
	opening, status = run(t, c, in)
	assert.Equal(t, 20.0, opening)
	assert.Equal(t, StatusDirect, status)

	opening, _ = run(t, c, direct(120))
	assert.Equal(t, 100.0, opening)
	opening, _ = run(t, c, direct(-3))
	assert.Zero(t, opening)
}

func TestPDMode(t *testing.T) {
	c := New("exv1", DefaultParams())

	// error 20, no derivative on the first sample
	opening, status := run(t, c, pd(100))
	assert.Equal(t, StatusPD, status)
	assert.InDelta(t, 51.0, opening, 1e-9)

	// error 22, derivative 2
	opening, _ = run(t, c, pd(102))
	assert.InDelta(t, 52.3, opening, 1e-9)

	// a restart forgets the previous error
	c.StartUp()
	opening, _ = run(t, c, pd(102))
	assert.InDelta(t, 51.1, opening, 1e-9)
}

func TestPDModeClamps(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, direct(99.5))

	opening, _ := run(t, c, pd(125))
	assert.Equal(t, 100.0, opening)

	c = New("exv1", DefaultParams())
	run(t, c, direct(0.2))
	opening, _ = run(t, c, pd(75))
	assert.Zero(t, opening)
}

func TestPDModeCriticalLowKeepsErrorHistory(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, pd(100))

	opening, status := run(t, c, pd(72))
	assert.Equal(t, StatusCriticalLow, status)
	assert.InDelta(t, 46.0, opening, 1e-9)

	// previous error is -8 from the critical sample: error 0, derivative 8
	opening, _ = run(t, c, pd(80))
	assert.InDelta(t, 46.8, opening, 1e-9)
}

func TestInvalidInputLeavesStateUntouched(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, sh(121))
	opening, status, wait := c.Opening(), c.Status(), c.WaitTime()

	for _, in := range []Input{
		sh(math.NaN()),
		{Mode: ModeEnvelopeSuperheat, DischargeSetpoint: math.Inf(1), DischargeTemp: 90},
		{Mode: ModeDirect, DischargeTemp: 90},
		{Mode: Mode(9), DischargeTemp: 90},
	} {
		_, _, err := c.Run(in)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, opening, c.Opening())
		assert.Equal(t, status, c.Status())
		assert.Equal(t, wait, c.WaitTime())
	}
}

func TestPumpDownAndStartUp(t *testing.T) {
	c := New("exv1", DefaultParams())
	run(t, c, sh(121))

	c.PumpDown()
	assert.Zero(t, c.Opening())
	assert.Equal(t, StatusPumpDown, c.Status())
	assert.False(t, c.Waiting())

	c.StartUp()
	assert.Equal(t, 50.0, c.Opening())
	assert.Equal(t, StatusNormal, c.Status())
	assert.Zero(t, c.WaitTime())
}

func TestOverridesAfterPumpDown(t *testing.T) {
	c := New("exv1", DefaultParams())
	c.PumpDown()

	opening, status := run(t, c, sh(135))
	assert.Equal(t, 5.0, opening)
	assert.Equal(t, StatusCriticalHigh, status)

	c.PumpDown()
	opening, status = run(t, c, direct(40))
	assert.Equal(t, 40.0, opening)
	assert.Equal(t, StatusDirect, status)

	// regular regulation resumes from the closed position
	c.PumpDown()
	opening, status = run(t, c, sh(121))
	assert.Equal(t, 1.0, opening)
	assert.Equal(t, StatusWaitingHigh, status)
	assert.Equal(t, 300, c.WaitTime())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeDirect, ModeEnvelopeSuperheat, ModePD} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMode(" PD ")
	require.NoError(t, err)
	assert.Equal(t, ModePD, got)

	_, err = ParseMode("user")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
