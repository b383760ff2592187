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

package hydraulics

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func ptr(v float64) *float64 { return &v }

// separationCircuit is the 60 m, DN125 circuit of the modular unit.
func separationCircuit() Config {
	return Config{Segments: 100, LengthM: 60, DiameterMM: 125, HeatLossWPerM: 0.5, Fluid: Water()}
}

func newLoop(t *testing.T, cfg Config) *Loop {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func TestLazyInitialization(t *testing.T) {
	cfg := separationCircuit()
	cfg.HeatLossWPerM = 0
	l := newLoop(t, cfg)
	assert.False(t, l.Initialized())
	assert.Nil(t, l.Profile())

	out, profile, err := l.Step(StepInput{InletTemp: ptr(40), OutletInit: 40, Dt: 1})
	require.NoError(t, err)
	assert.True(t, l.Initialized())
	assert.Equal(t, 40.0, out)
	require.Len(t, profile, 100)
	for _, v := range profile {
		assert.Equal(t, 40.0, v)
	}

	// later calls ignore the initial value
	out, _, err = l.Step(StepInput{InletTemp: ptr(40), OutletInit: 10, Dt: 1})
	require.NoError(t, err)
	assert.Equal(t, 40.0, out)
}

func TestZeroFlowDecaysToAmbient(t *testing.T) {
	// small pipe with heavy losses: about 3 K/s of cooling per segment
	cfg := Config{Segments: 10, LengthM: 10, DiameterMM: 10, HeatLossWPerM: 1000, AmbientTemp: ptr(20)}
	l := newLoop(t, cfg)

	prev, _, err := l.Step(StepInput{InletTemp: ptr(21), OutletInit: 21, Dt: 0.1})
	require.NoError(t, err)
	prevProfile := l.Profile()

	for i := 0; i < 20; i++ {
		_, profile, err := l.Step(StepInput{InletTemp: ptr(21), Dt: 0.1})
		require.NoError(t, err)
		for j, v := range profile {
			assert.LessOrEqual(t, v, prevProfile[j])
			assert.GreaterOrEqual(t, v, 20.0)
		}
		prevProfile = profile
		assert.LessOrEqual(t, l.Smoothed(), prev)
		prev = l.Smoothed()
	}
	lo, hi := l.Spread()
	assert.Equal(t, 20.0, lo)
	assert.Equal(t, 20.0, hi)
}

func TestZeroFlowWithoutAmbientKeepsCooling(t *testing.T) {
	l := newLoop(t, separationCircuit())

	_, prev, err := l.Step(StepInput{InletTemp: ptr(45), OutletInit: 45, Dt: 1})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, profile, err := l.Step(StepInput{InletTemp: ptr(45), Dt: 1})
		require.NoError(t, err)
		for j := range profile {
			assert.Less(t, profile[j], prev[j])
		}
		prev = profile
	}
}

func TestSinkAppliesToMiddleSegmentOnly(t *testing.T) {
	cfg := separationCircuit()
	cfg.HeatLossWPerM = 0
	l := newLoop(t, cfg)

	_, profile, err := l.Step(StepInput{InletTemp: ptr(40), OutletInit: 40, Dt: 1, SinkPowerW: 10000})
	require.NoError(t, err)
	for i, v := range profile {
		if i == 50 {
			assert.Less(t, v, 40.0)
		} else {
			assert.Equal(t, 40.0, v, "segment %d", i)
		}
	}
}

func TestFlowDerivationWithoutTemperatureRise(t *testing.T) {
	cfg := separationCircuit()
	cfg.HeatLossWPerM = 0
	l := newLoop(t, cfg)

	// inlet equals the pipe temperature: no flow can be derived, nothing moves
	out, profile, err := l.Step(StepInput{InletTemp: ptr(40), OutletInit: 40, Dt: 1, HeatPowerW: 50000})
	require.NoError(t, err)
	assert.Equal(t, 40.0, out)
	for _, v := range profile {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 40.0, v)
	}
}

func TestDerivedFlowAdvectsInletTemperature(t *testing.T) {
	cfg := separationCircuit()
	cfg.HeatLossWPerM = 0
	l := newLoop(t, cfg)

	_, profile, err := l.Step(StepInput{InletTemp: ptr(50), OutletInit: 40, Dt: 1, HeatPowerW: 50000})
	require.NoError(t, err)
	assert.Greater(t, profile[0], 40.0)
	assert.Less(t, profile[0], 50.0)
	for i := 1; i < len(profile); i++ {
		assert.LessOrEqual(t, profile[i], profile[i-1])
	}
}

func TestGivenFlowDerivesInlet(t *testing.T) {
	cfg := separationCircuit()
	cfg.HeatLossWPerM = 0
	l := newLoop(t, cfg)
	f := Water()
	flow := 0.001

	// without heat the inlet is the smoothed outlet and the loop stays put
	_, profile, err := l.Step(StepInput{OutletInit: 40, Dt: 1, VolumetricFlow: ptr(flow)})
	require.NoError(t, err)
	for _, v := range profile {
		assert.InDelta(t, 40.0, v, 1e-12)
	}

	// 10 K rise at the given flow
	power := 10 * f.Density * f.SpecificHeat * flow
	var out float64
	for i := 0; i < 600; i++ {
		out, profile, err = l.Step(StepInput{OutletInit: 40, Dt: 1, HeatPowerW: power, VolumetricFlow: ptr(flow)})
		require.NoError(t, err)
	}
	assert.Greater(t, profile[0], 45.0)
	assert.Greater(t, out, 40.0)
	for i := 1; i < len(profile); i++ {
		assert.LessOrEqual(t, profile[i], profile[i-1]+1e-9)
	}
}

func TestSmoothingReducesVariance(t *testing.T) {
	// one segment: the sink acts directly on the outlet, about 1 K per step
	cfg := Config{Segments: 1, LengthM: 1, DiameterMM: 100}
	l := newLoop(t, cfg)
	f := Water()
	kelvin := f.Density * l.Volume() * f.LoopSpecificHeat

	var raw, smoothed []float64
	for i := 0; i < 60; i++ {
		sink := kelvin
		if i%2 == 1 {
			sink = -kelvin
		}
		out, profile, err := l.Step(StepInput{InletTemp: ptr(40), OutletInit: 40, Dt: 1, SinkPowerW: sink})
		require.NoError(t, err)
		if i >= 10 {
			raw = append(raw, profile[0])
			smoothed = append(smoothed, out)
		}
	}

	rawVar := stat.Variance(raw, nil)
	assert.InDelta(t, 0.25, rawVar, 0.01)
	assert.Less(t, stat.Variance(smoothed, nil), rawVar)
	assert.InDelta(t, 39.5, stat.Mean(smoothed, nil), 1e-6)
}

func TestHistoryWindow(t *testing.T) {
	cfg := Config{Segments: 1, LengthM: 1, DiameterMM: 100}
	l := newLoop(t, cfg)

	l.record(1, 3)
	l.record(2, 3)
	l.record(3, 3)
	l.record(4, 3)
	assert.Len(t, l.history, 3)
	assert.Equal(t, 3.0, l.Smoothed())

	// a step longer than the window keeps the latest sample only
	l.record(10, 20)
	assert.Equal(t, []float64{10}, l.history)
	assert.Equal(t, 10.0, l.Smoothed())
}

func TestStepRejectsInvalidInput(t *testing.T) {
	l := newLoop(t, separationCircuit())

	for _, in := range []StepInput{
		{InletTemp: ptr(40), OutletInit: 40, Dt: 0},
		{InletTemp: ptr(40), OutletInit: 40, Dt: math.NaN()},
		{InletTemp: ptr(math.NaN()), OutletInit: 40, Dt: 1},
		{OutletInit: 40, Dt: 1},
		{OutletInit: 40, Dt: 1, VolumetricFlow: ptr(0)},
		{InletTemp: ptr(40), OutletInit: math.Inf(1), Dt: 1},
	} {
		_, _, err := l.Step(in)
		assert.True(t, errors.Is(err, ErrInvalidInput), "%+v", in)
	}
	assert.False(t, l.Initialized())
}

func TestNewRejectsBadGeometry(t *testing.T) {
	for _, cfg := range []Config{
		{Segments: 0, LengthM: 1, DiameterMM: 10},
		{Segments: 1, LengthM: 0, DiameterMM: 10},
		{Segments: 1, LengthM: 1, DiameterMM: -1},
		{Segments: 1, LengthM: 1, DiameterMM: 10, HeatLossWPerM: -1},
		{Segments: 1, LengthM: 1, DiameterMM: 10, Fluid: Fluid{Density: 1000}},
	} {
		_, err := New(cfg)
		assert.True(t, errors.Is(err, ErrConfiguration), "%+v", cfg)
	}
}

func TestResetStartsOver(t *testing.T) {
	l := newLoop(t, separationCircuit())
	_, _, err := l.Step(StepInput{InletTemp: ptr(40), OutletInit: 40, Dt: 1})
	require.NoError(t, err)

	l.Reset()
	out, _, err := l.Step(StepInput{InletTemp: ptr(30), OutletInit: 30, Dt: 1})
	require.NoError(t, err)
	assert.InDelta(t, 30.0, out, 0.01)
}
