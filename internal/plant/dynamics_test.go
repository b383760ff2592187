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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemandFilter(t *testing.T) {
	f := NewDemandFilter(0, 0)

	v, err := f.Update(10)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)

	v, err = f.Update(10)
	require.NoError(t, err)
	assert.InDelta(t, 3.6, v, 1e-12)

	// ramps down the same way
	f.Reset(10)
	v, err = f.Update(0)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, v, 1e-12)
}

func TestDemandFilterRejectsInvalidTarget(t *testing.T) {
	f := NewDemandFilter(5, 3)
	_, err := f.Update(10)
	require.NoError(t, err)

	for _, target := range []float64{-1, math.NaN(), math.Inf(1)} {
		v, err := f.Update(target)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, 2.0, v)
		assert.Equal(t, 2.0, f.Value())
	}
}

func TestDemandFilterWithoutLag(t *testing.T) {
	f := NewDemandFilter(0.2, 3)
	v, err := f.Update(12)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}

func TestDemandFilterTarget(t *testing.T) {
	f := NewDemandFilter(5, 2.5)
	thermal, elec := 12.0, 4.0

	assert.Equal(t, 12.0, f.Target(&thermal, &elec))
	assert.Equal(t, 10.0, f.Target(nil, &elec))
	assert.Zero(t, f.Target(nil, nil))
}
