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

package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by the getters when nothing was stored under the key.
var ErrNotFound = errors.New("not found")

type Queries struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Queries {
	return &Queries{db: db}
}

func (q *Queries) Close() error {
	return q.db.Close()
}

// UnitState is the persisted wear-levelling state of a compressor unit.
type UnitState struct {
	UnitName      string    `db:"unit_name"`
	RuntimeNs     int64     `db:"runtime_ns"`
	OutOfEnvelope int64     `db:"out_of_envelope"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s UnitState) Runtime() time.Duration {
	return time.Duration(s.RuntimeNs)
}

type UpsertUnitStateParams struct {
	UnitName      string `db:"unit_name"`
	RuntimeNs     int64  `db:"runtime_ns"`
	OutOfEnvelope int64  `db:"out_of_envelope"`
}

const upsertUnitState = `
INSERT INTO unit_state (unit_name, runtime_ns, out_of_envelope, updated_at)
VALUES (:unit_name, :runtime_ns, :out_of_envelope, CURRENT_TIMESTAMP)
ON CONFLICT (unit_name) DO UPDATE SET
    runtime_ns = excluded.runtime_ns,
    out_of_envelope = excluded.out_of_envelope,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertUnitState(ctx context.Context, arg UpsertUnitStateParams) error {
	_, err := q.db.NamedExecContext(ctx, upsertUnitState, arg)
	return errors.Wrapf(err, "store state of unit %s", arg.UnitName)
}

const getUnitState = `
SELECT unit_name, runtime_ns, out_of_envelope, updated_at FROM unit_state WHERE unit_name = ?`

func (q *Queries) GetUnitState(ctx context.Context, unitName string) (UnitState, error) {
	var s UnitState
	err := q.db.GetContext(ctx, &s, getUnitState, unitName)
	return s, notFound(err, "unit %s", unitName)
}

const listUnitStates = `
SELECT unit_name, runtime_ns, out_of_envelope, updated_at FROM unit_state ORDER BY unit_name`

func (q *Queries) ListUnitStates(ctx context.Context) ([]UnitState, error) {
	var states []UnitState
	if err := q.db.SelectContext(ctx, &states, listUnitStates); err != nil {
		return nil, errors.Wrap(err, "list unit states")
	}
	return states, nil
}

type UpsertControllerValueParams struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

const upsertControllerValue = `
INSERT INTO controller_values (name, value) VALUES (:name, :value)
ON CONFLICT (name) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertControllerValue(ctx context.Context, arg UpsertControllerValueParams) error {
	_, err := q.db.NamedExecContext(ctx, upsertControllerValue, arg)
	return errors.Wrapf(err, "store controller value %s", arg.Name)
}

func (q *Queries) GetControllerValue(ctx context.Context, name string) (string, error) {
	var v string
	err := q.db.GetContext(ctx, &v, `SELECT value FROM controller_values WHERE name = ?`, name)
	return v, notFound(err, "controller value %s", name)
}

type UpsertSensorValueParams struct {
	SensorName string  `db:"sensor_name"`
	Value      float64 `db:"value"`
}

const upsertSensorValue = `
INSERT INTO sensor_values (sensor_name, value) VALUES (:sensor_name, :value)
ON CONFLICT (sensor_name) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertSensorValue(ctx context.Context, arg UpsertSensorValueParams) error {
	_, err := q.db.NamedExecContext(ctx, upsertSensorValue, arg)
	return errors.Wrapf(err, "store sensor value %s", arg.SensorName)
}

func (q *Queries) GetSensorValue(ctx context.Context, sensorName string) (float64, error) {
	var v float64
	err := q.db.GetContext(ctx, &v, `SELECT value FROM sensor_values WHERE sensor_name = ?`, sensorName)
	return v, notFound(err, "sensor %s", sensorName)
}

func notFound(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.WithMessagef(ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
