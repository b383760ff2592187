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
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/sql/schema"
)

const memoryDB = ":memory:"

// OpenDatabase opens the state database and panics when it cannot be used.
func OpenDatabase(dbFile string) *Queries {
	q, err := Open(dbFile)
	if err != nil {
		logger.L().Panic(err)
	}
	return q
}

// Open opens (creating if needed) the sqlite file and applies the schema.
func Open(dbFile string) (*Queries, error) {
	path, err := expandHome(dbFile)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errors.Wrapf(err, "ping %s", path)
	}

	// every connection to :memory: is a separate database
	if path == memoryDB {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(100)
	}

	if _, err := sqlDB.Exec(schema.Schema); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	logger.L().Debugf("State database `%s` ready", path)

	return New(sqlDB), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
