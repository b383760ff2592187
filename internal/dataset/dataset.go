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

// Package dataset reads and writes the per-model compressor dataset: polynomial
// coefficients plus the operating envelope polygons and their speed limits.
package dataset

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/antst/hpcascade/internal/envelope"
	"github.com/antst/hpcascade/internal/performance"
)

var ErrConfiguration = errors.New("invalid compressor dataset")

type Format int

const (
	JSON Format = iota
	YAML
)

// Dataset mirrors the on-disk record. Field names are kept compatible with the
// files produced from the manufacturer polynomial tables.
type Dataset struct {
	PolyData []float64      `json:"poly_data" yaml:"poly_data,flow"`
	Polygons [][][2]float64 `json:"polygons" yaml:"polygons"`
	N1Values []float64      `json:"n1_values" yaml:"n1_values,flow"`
	N2Values []float64      `json:"n2_values" yaml:"n2_values,flow"`
}

// FormatFor picks the encoding from the file extension; anything but .yaml/.yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close()

	ds, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %s", path)
	}
	return ds, nil
}

func Save(path string, ds *Dataset) error {
	var buf bytes.Buffer
	if err := Encode(&buf, ds, FormatFor(path)); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "failed to write dataset %s", path)
}

func Decode(r io.Reader, format Format) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset")
	}

	ds := &Dataset{}
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, ds)
	default:
		err = json.Unmarshal(data, ds)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "unmarshal: %v", err)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func Encode(w io.Writer, ds *Dataset, format Format) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(ds); err != nil {
			return errors.Wrap(err, "failed to encode dataset")
		}
		return errors.Wrap(enc.Close(), "failed to flush dataset")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return errors.Wrap(enc.Encode(ds), "failed to encode dataset")
	}
}

// Validate checks the structural invariants the rest of the plant relies on.
func (ds *Dataset) Validate() error {
	if len(ds.PolyData) < performance.LegacyLength {
		return errors.WithMessagef(ErrConfiguration, "poly_data has %d values", len(ds.PolyData))
	}
	if n := len(ds.PolyData); n > performance.LegacyLength && n < performance.FullLength {
		return errors.WithMessagef(ErrConfiguration, "poly_data has %d values: truncated shaft power block", n)
	}
	for i, v := range ds.PolyData {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.WithMessagef(ErrConfiguration, "poly_data[%d] is not finite", i)
		}
	}
	if len(ds.Polygons) == 0 {
		return errors.WithMessage(ErrConfiguration, "no polygons")
	}
	if len(ds.N1Values) != len(ds.Polygons) || len(ds.N2Values) != len(ds.Polygons) {
		return errors.WithMessagef(
			ErrConfiguration, "%d polygons with %d n1 and %d n2 values",
			len(ds.Polygons), len(ds.N1Values), len(ds.N2Values),
		)
	}
	for i, p := range ds.Polygons {
		if len(p) < 3 {
			return errors.WithMessagef(ErrConfiguration, "polygon %d has %d vertices", i, len(p))
		}
		if ds.N1Values[i] > ds.N2Values[i] {
			return errors.WithMessagef(
				ErrConfiguration, "polygon %d: n1 %v above n2 %v", i, ds.N1Values[i], ds.N2Values[i],
			)
		}
	}
	return nil
}

// Regions converts the polygons into envelope regions, preserving order.
func (ds *Dataset) Regions() []envelope.Region {
	regions := make([]envelope.Region, len(ds.Polygons))
	for i, poly := range ds.Polygons {
		vs := make([]envelope.Point, len(poly))
		for j, v := range poly {
			vs[j] = envelope.Point{Evap: v[0], Cond: v[1]}
		}
		regions[i] = envelope.Region{Vertices: vs, MinSpeed: ds.N1Values[i], MaxSpeed: ds.N2Values[i]}
	}
	return regions
}

func (ds *Dataset) Envelope(shutdownThreshold int) (*envelope.Map, error) {
	m, err := envelope.NewMap(ds.Regions(), shutdownThreshold)
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	return m, nil
}

func (ds *Dataset) Coefficients() (*performance.Coefficients, error) {
	c, err := performance.CoefficientsFromFlat(ds.PolyData)
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	return c, nil
}

// SpeedRange is the overall speed span covered by the envelope.
func (ds *Dataset) SpeedRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range ds.N1Values {
		lo = math.Min(lo, ds.N1Values[i])
		hi = math.Max(hi, ds.N2Values[i])
	}
	return lo, hi
}
