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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antst/hpcascade/internal"
	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/db"
	"github.com/antst/hpcascade/internal/logger"
)

// Build version, overridden with flag during build.
var version = "devel"

func main() {
	logger.L().Warnf("Cascade heat pump controller, version: %+v", version)
	defer logger.Close()

	cfg := config.Get()
	if cfg.Simulate > 0 {
		simulate(cfg)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := internal.NewPlantController(cfg, cfg.ConfigFile)
	if err != nil {
		logger.L().Fatal(err)
	}
	defer c.Close()
	c.Run(ctx)
}

// simulate runs the configured plant offline on a scratch database.
func simulate(cfg *config.Config) {
	q := db.OpenDatabase(":memory:")
	c, err := internal.NewSimulation(cfg, q, cfg.ConfigFile)
	if err != nil {
		logger.L().Fatal(err)
	}
	defer c.Close()

	tick := *cfg.Tick
	for i := 1; i <= cfg.Simulate; i++ {
		rep, err := c.Tick(time.Duration(i) * tick)
		if err != nil {
			logger.L().Fatal(err)
		}
		logger.L().Infof(
			"t=%v demand=%.2f kW heat=%.2f kW el=%.2f kW COP=%.2f outlet=%.2f °C selection=%v",
			rep.Now, rep.Demand, rep.HeatOutputW/1e3, rep.ElectricalPowerW/1e3, rep.COP, rep.Outlet, rep.Selection,
		)
		for _, e := range rep.Faults() {
			logger.L().Warn(e)
		}
	}
}
