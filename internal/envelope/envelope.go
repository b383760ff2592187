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

// Package envelope implements the certified operating map of a compressor: a set of
// polygons in (evaporating, condensing) temperature space, each carrying its own
// permitted speed range.
package envelope

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// DefaultShutdownThreshold is the number of consecutive out-of-map samples tolerated
// before the unit has to be stopped.
const DefaultShutdownThreshold = 300

var (
	ErrProtectiveShutdown = errors.New("compressor outside of operating envelope for too long")
	ErrConfiguration      = errors.New("invalid envelope configuration")
	ErrInvalidInput       = errors.New("invalid envelope input")
)

// Point is an operating point: evaporating and condensing temperature in °C.
type Point struct {
	Evap float64
	Cond float64
}

// Region is a closed polygon with the speed range allowed inside it.
type Region struct {
	Vertices []Point
	MinSpeed float64
	MaxSpeed float64
}

// Bounds is the speed range of the region an operating point falls into.
type Bounds struct {
	Region   int
	MinSpeed float64
	MaxSpeed float64
}

// Counters tracks envelope violations of a single compressor.
type Counters struct {
	// Limited counts samples where the requested speed had to be corrected.
	Limited int
	// OutOfEnvelope never decreases while the plant runs.
	OutOfEnvelope int
	// ConsecutiveOutOfEnvelope resets on the first in-envelope sample.
	ConsecutiveOutOfEnvelope int
}

type Map struct {
	regions   []Region
	threshold int
}

// NewMap validates the regions and keeps them in the given order, which is the
// order they are matched in.
func NewMap(regions []Region, shutdownThreshold int) (*Map, error) {
	if len(regions) == 0 {
		return nil, errors.WithMessage(ErrConfiguration, "no regions")
	}
	if shutdownThreshold <= 0 {
		shutdownThreshold = DefaultShutdownThreshold
	}

	m := &Map{regions: make([]Region, len(regions)), threshold: shutdownThreshold}
	for i, r := range regions {
		if len(r.Vertices) < 3 {
			return nil, errors.WithMessagef(ErrConfiguration, "region %d: %d vertices", i, len(r.Vertices))
		}
		for _, v := range r.Vertices {
			if !finite(v.Evap) || !finite(v.Cond) {
				return nil, errors.WithMessagef(ErrConfiguration, "region %d: non-finite vertex %+v", i, v)
			}
		}
		if !finite(r.MinSpeed) || !finite(r.MaxSpeed) || r.MinSpeed > r.MaxSpeed {
			return nil, errors.WithMessagef(
				ErrConfiguration, "region %d: speed range [%v, %v]", i, r.MinSpeed, r.MaxSpeed,
			)
		}
		vs := make([]Point, len(r.Vertices))
		copy(vs, r.Vertices)
		m.regions[i] = Region{Vertices: vs, MinSpeed: r.MinSpeed, MaxSpeed: r.MaxSpeed}
	}

	return m, nil
}

func (m *Map) Regions() int { return len(m.regions) }

func (m *Map) Threshold() int { return m.threshold }

// Classify returns the speed bounds of the first region containing the point.
func (m *Map) Classify(evap, cond float64) (Bounds, bool) {
	for i, r := range m.regions {
		if contains(r.Vertices, evap, cond) {
			return Bounds{Region: i, MinSpeed: r.MinSpeed, MaxSpeed: r.MaxSpeed}, true
		}
	}
	return Bounds{}, false
}

// ClampSpeed limits speed to the range of the region the operating point lies in.
// Outside every region no correction is possible and speed is returned unchanged;
// once the run of consecutive outside samples exceeds the threshold the call fails
// with ErrProtectiveShutdown. Non-finite inputs fail with ErrInvalidInput and leave the
// counters untouched.
func (m *Map) ClampSpeed(c *Counters, evap, cond, speed float64) (float64, error) {
	if !finite(evap) || !finite(cond) || !finite(speed) {
		return speed, errors.WithMessagef(ErrInvalidInput, "evap %v cond %v speed %v", evap, cond, speed)
	}
	b, inside := m.Classify(evap, cond)
	if inside {
		c.ConsecutiveOutOfEnvelope = 0
		limited := math.Max(b.MinSpeed, math.Min(speed, b.MaxSpeed))
		if limited != speed {
			c.Limited++
		}
		return limited, nil
	}

	c.OutOfEnvelope++
	c.ConsecutiveOutOfEnvelope++
	if c.ConsecutiveOutOfEnvelope > m.threshold {
		return speed, errors.WithMessage(
			ErrProtectiveShutdown,
			fmt.Sprintf("%d consecutive samples at (%.2f, %.2f)", c.ConsecutiveOutOfEnvelope, evap, cond),
		)
	}
	return speed, nil
}

// contains is the even-odd rule: a horizontal ray from the point is tested against
// every edge with exactly one endpoint strictly above it.
func contains(poly []Point, x, y float64) bool {
	inside := false
	for j, k := 0, len(poly)-1; j < len(poly); k, j = j, j+1 {
		x1, y1 := poly[j].Evap, poly[j].Cond
		x2, y2 := poly[k].Evap, poly[k].Cond
		if (y1 > y) != (y2 > y) && x < (x2-x1)*(y-y1)/(y2-y1)+x1 {
			inside = !inside
		}
	}
	return inside
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
