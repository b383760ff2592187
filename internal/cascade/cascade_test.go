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

package cascade

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antst/hpcascade/internal/compressor"
	"github.com/antst/hpcascade/internal/envelope"
	"github.com/antst/hpcascade/internal/performance"
)

var amb = compressor.Ambient{Temperature: 10, Humidity: 60}

// pro70 is the published speed/power table of the modular unit compressor.
func pro70(t *testing.T) *compressor.Table {
	t.Helper()
	tbl, err := compressor.NewTable([]compressor.SpeedPower{
		{Speed: 50, Power: 10}, {Speed: 60, Power: 12.5}, {Speed: 70, Power: 15}, {Speed: 80, Power: 17.5},
		{Speed: 90, Power: 20}, {Speed: 100, Power: 22}, {Speed: 110, Power: 24.5}, {Speed: 120, Power: 27},
	}, 3.5, 70)
	require.NoError(t, err)
	return tbl
}

func newDispatcher(t *testing.T, n int) *Dispatcher {
	t.Helper()
	units := make([]*Unit, n)
	for i := range units {
		units[i] = &Unit{Model: pro70(t)}
	}
	d, err := New(units)
	require.NoError(t, err)
	return d
}

func TestSelectSingleUnit(t *testing.T) {
	d := newDispatcher(t, 1)

	tests := []struct {
		name   string
		demand float64
		speed  float64
	}{
		{"below lowest power", 5, 50},
		{"zero demand", 0, 50},
		{"exact row", 15, 70},
		{"between rows", 16, 80},
		{"above highest power", 100, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := d.Select(tt.demand, amb)
			require.NoError(t, err)
			assert.Equal(t, []Selection{{UnitID: 0, Speed: tt.speed}}, sel)
		})
	}
}

func TestSelectWearLeveling(t *testing.T) {
	d := newDispatcher(t, 3)
	require.NoError(t, d.Restore(0, 100*time.Second, 0))
	require.NoError(t, d.Restore(1, 10*time.Second, 0))
	require.NoError(t, d.Restore(2, 50*time.Second, 0))

	sel, err := d.Select(20, amb)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 1, Speed: 100}}, sel)

	sel, _, err = d.Run(20, amb, 0)
	require.NoError(t, err)
	require.Equal(t, []Selection{{UnitID: 1, Speed: 100}}, sel)

	// with the least used unit busy, the next least used follows
	sel, err = d.Select(35, amb)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 1, Speed: 120}, {UnitID: 2, Speed: 50}}, sel)
}

func TestSelectAddsUnitsUntilDemandExceeded(t *testing.T) {
	d := newDispatcher(t, 3)

	// no single unit covers 35 kW: the first one runs flat out, the second tops up
	sel, err := d.Select(35, amb)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 0, Speed: 120}, {UnitID: 1, Speed: 50}}, sel)
	assert.Equal(t, 37.0, d.Power(sel, amb))
}

func TestSelectExhausted(t *testing.T) {
	d := newDispatcher(t, 2)

	sel, err := d.Select(500, amb)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 0, Speed: 120}, {UnitID: 1, Speed: 120}}, sel)
}

func TestSelectClosestRunningUnit(t *testing.T) {
	d := newDispatcher(t, 3)

	_, snap, err := d.Run(20, amb, 0)
	require.NoError(t, err)
	require.True(t, snap[0].Running)

	// a running unit close enough keeps the plant on one compressor
	sel, snap, err := d.Run(17, amb, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 0, Speed: 80}}, sel)
	assert.Equal(t, 80.0, snap[0].Speed)
	assert.Zero(t, snap[0].Runtime)

	// the running unit goes to its closest row, a stopped one fills the gap
	sel, _, err = d.Run(35, amb, 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 0, Speed: 120}, {UnitID: 1, Speed: 50}}, sel)
}

func TestSelectZeroDemandKeepsClosestRunningUnit(t *testing.T) {
	d := newDispatcher(t, 2)
	_, _, err := d.Run(35, amb, 0)
	require.NoError(t, err)

	sel, snap, err := d.Run(0, amb, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 0, Speed: 50}}, sel)
	assert.True(t, snap[0].Running)
	assert.Zero(t, snap[0].Runtime)
	assert.False(t, snap[1].Running)
	assert.Equal(t, 30*time.Second, snap[1].Runtime)
}

func TestApplyRuntimeAccounting(t *testing.T) {
	d := newDispatcher(t, 2)
	start := 5 * time.Second

	snap := d.Apply([]Selection{{UnitID: 0, Speed: 60}}, start)
	assert.True(t, snap[0].Running)
	assert.Equal(t, start, snap[0].LastStart)
	assert.False(t, snap[1].Running)

	// unchanged state: no accounting, however often it is applied
	for i := 1; i <= 5; i++ {
		snap = d.Apply([]Selection{{UnitID: 0, Speed: 60}}, start+time.Duration(i)*time.Second)
		assert.Zero(t, snap[0].Runtime)
		assert.Equal(t, start, snap[0].LastStart)
	}

	snap = d.Apply(nil, start+60*time.Second)
	assert.False(t, snap[0].Running)
	assert.Equal(t, 60*time.Second, snap[0].Runtime)
	assert.Zero(t, snap[0].LastStart)
	assert.Zero(t, snap[1].Runtime)

	snap = d.Apply(nil, start+120*time.Second)
	assert.Equal(t, 60*time.Second, snap[0].Runtime)
}

func TestSelectRejectsInvalidDemand(t *testing.T) {
	d := newDispatcher(t, 2)
	_, _, err := d.Run(20, amb, 0)
	require.NoError(t, err)
	before := d.Snapshot()

	for _, demand := range []float64{-1, math.NaN(), math.Inf(1)} {
		sel, snap, err := d.Run(demand, amb, time.Minute)
		assert.True(t, errors.Is(err, ErrInvalidInput), "demand %v", demand)
		assert.Nil(t, sel)
		assert.Nil(t, snap)
		assert.Equal(t, before, d.Snapshot())
	}
}

func TestStopFaultedUnitIsSkipped(t *testing.T) {
	d := newDispatcher(t, 2)
	_, _, err := d.Run(20, amb, 0)
	require.NoError(t, err)

	require.NoError(t, d.Stop(0, 40*time.Second, true))
	snap := d.Snapshot()
	assert.False(t, snap[0].Running)
	assert.True(t, snap[0].Faulted)
	assert.Equal(t, 40*time.Second, snap[0].Runtime)

	sel, err := d.Select(20, amb)
	require.NoError(t, err)
	assert.Equal(t, []Selection{{UnitID: 1, Speed: 100}}, sel)

	require.NoError(t, d.Reset(0))
	assert.False(t, d.Snapshot()[0].Faulted)

	assert.True(t, errors.Is(d.Stop(7, 0, false), ErrUnknownUnit))
}

func TestSingleFaultedUnitSelectsNothing(t *testing.T) {
	d := newDispatcher(t, 1)
	require.NoError(t, d.Stop(0, 0, true))
	sel, err := d.Select(10, amb)
	require.NoError(t, err)
	assert.Empty(t, sel)
}

func TestClamp(t *testing.T) {
	// table units have no envelope
	d := newDispatcher(t, 1)
	d.Apply([]Selection{{UnitID: 0, Speed: 90}}, 0)
	speed, err := d.Clamp(0, -50, 90)
	require.NoError(t, err)
	assert.Equal(t, 90.0, speed)

	data := make([]float64, performance.FullLength)
	coeff, err := performance.CoefficientsFromFlat(data)
	require.NoError(t, err)
	env, err := envelope.NewMap([]envelope.Region{{
		Vertices: []envelope.Point{{Evap: -20, Cond: 20}, {Evap: 10, Cond: 20}, {Evap: 10, Cond: 60}, {Evap: -20, Cond: 60}},
		MinSpeed: 30, MaxSpeed: 70,
	}}, 0)
	require.NoError(t, err)
	u, err := compressor.NewUnit("vzn", env, performance.NewModel(coeff), compressor.Operating{MinSpeed: 30, MaxSpeed: 70})
	require.NoError(t, err)

	d, err = New([]*Unit{{Name: "vzn", Model: u}})
	require.NoError(t, err)
	d.Apply([]Selection{{UnitID: 0, Speed: 90}}, 0)

	speed, err = d.Clamp(0, 0, 35)
	require.NoError(t, err)
	assert.Equal(t, 70.0, speed)
	assert.Equal(t, 70.0, d.Snapshot()[0].Speed)

	c, err := d.Counters(0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Limited)
}

func TestNewRejectsEmptyPlant(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = New([]*Unit{{}})
	assert.True(t, errors.Is(err, ErrConfiguration))
}
