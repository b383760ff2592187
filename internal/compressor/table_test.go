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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	tbl, err := NewTable([]SpeedPower{{Speed: 70, Power: 15}, {Speed: 50, Power: 10}, {Speed: 60, Power: 12.5}}, 4, 75)
	require.NoError(t, err)

	table := tbl.Predict(Ambient{Temperature: -7})
	assert.Equal(t, []SpeedPower{{50, 10}, {60, 12.5}, {70, 15}}, table)

	// callers cannot modify the table through the returned slice
	table[0].Power = 100
	assert.Equal(t, 10.0, tbl.Predict(Ambient{})[0].Power)

	tests := []struct {
		speed float64
		heat  float64
	}{
		{40, 10000},
		{50, 10000},
		{55, 11250},
		{70, 15000},
		{90, 15000},
	}
	for _, tt := range tests {
		r := tbl.Evaluate(tt.speed, 0, 35)
		assert.InDelta(t, tt.heat, r.HeatOutput, 1e-9, "speed %v", tt.speed)
		assert.InDelta(t, tt.heat/4, r.ElectricalPower, 1e-9)
		assert.Equal(t, 4.0, r.COP)
		assert.Equal(t, 75.0, r.DischargeTemp)
	}
}

func TestTableWithoutCOP(t *testing.T) {
	tbl, err := NewTable([]SpeedPower{{Speed: 50, Power: 10}}, 0, 70)
	require.NoError(t, err)
	r := tbl.Evaluate(50, 0, 35)
	assert.Zero(t, r.COP)
	assert.Zero(t, r.ElectricalPower)
}

func TestNewTableErrors(t *testing.T) {
	_, err := NewTable(nil, 3, 70)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewTable([]SpeedPower{{50, 10}, {50, 11}}, 3, 70)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewTable([]SpeedPower{{50, 10}}, -1, 70)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
