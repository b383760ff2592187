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

package internal

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/compressor"
	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/dataset"
	"github.com/antst/hpcascade/internal/hydraulics"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/plant"
	"github.com/antst/hpcascade/internal/valve"
)

// buildPlant turns the configuration into a plant. Dataset paths are relative to baseDir.
func buildPlant(cfg *config.Config, baseDir string) (*plant.Plant, error) {
	pc := cfg.Plant
	mode, err := valve.ParseMode(pc.ValveMode)
	if err != nil {
		return nil, err
	}

	pcfg := plant.Config{
		KTime:             deref(pc.KTime),
		NominalCOP:        deref(pc.NominalCOP),
		ValveMode:         mode,
		DischargeSetpoint: deref(pc.DischargeSetpoint),
		Hydraulics:        hydraulicsConfig(cfg.Hydraulics),
	}

	threshold := 0
	if pc.ShutdownThreshold != nil {
		threshold = *pc.ShutdownThreshold
	}

	for _, u := range pc.Units {
		op := operating(u.Operating)
		model, err := buildCompressor(u, threshold, op, baseDir)
		if err != nil {
			return nil, err
		}
		pcfg.Units = append(pcfg.Units, plant.UnitSpec{
			Name:       u.Name,
			Compressor: model,
			Operating:  op,
			Valve:      valveParams(u.Valve),
		})
		logger.L().Infof("Unit `%s` configured", u.Name)
	}

	return plant.New(pcfg)
}

func buildCompressor(
	u *config.UnitConfig, threshold int, op compressor.Operating, baseDir string,
) (compressor.CompressorLike, error) {
	switch {
	case u.Dataset != "":
		path := u.Dataset
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		ds, err := dataset.Load(path)
		if err != nil {
			return nil, errors.WithMessage(err, u.Name)
		}
		return compressor.FromDataset(u.Name, ds, threshold, op)
	case len(u.Table) > 0:
		entries := make([]compressor.SpeedPower, len(u.Table))
		for i, e := range u.Table {
			entries[i] = compressor.SpeedPower{Speed: e.Speed, Power: e.Power}
		}
		t, err := compressor.NewTable(entries, deref(u.COP), deref(u.DischargeTemp))
		if err != nil {
			return nil, errors.WithMessage(err, u.Name)
		}
		return t, nil
	}
	return nil, errors.WithMessagef(compressor.ErrConfiguration, "%s: neither dataset nor table", u.Name)
}

func operating(c *config.OperatingConfig) compressor.Operating {
	if c == nil {
		return compressor.Operating{}
	}
	return compressor.Operating{
		EvapApproach:   deref(c.EvapApproach),
		CondensingTemp: deref(c.CondensingTemp),
		MinSpeed:       deref(c.MinSpeed),
		MaxSpeed:       deref(c.MaxSpeed),
		SpeedStep:      deref(c.SpeedStep),
		PowerScale:     deref(c.PowerScale),
	}
}

// valveParams overlays the configured fields on the controller defaults.
func valveParams(c *config.ValveConfig) valve.Params {
	p := valve.DefaultParams()
	if c == nil {
		return p
	}
	set(&p.SuperheatSetpoint, c.SuperheatSetpoint)
	set(&p.TargetSuperheat, c.TargetSuperheat)
	set(&p.LowThreshold, c.LowThreshold)
	set(&p.HighThreshold, c.HighThreshold)
	set(&p.CriticalLowThreshold, c.CriticalLowThreshold)
	set(&p.CriticalLowStep, c.CriticalLowStep)
	set(&p.CriticalDischarge, c.CriticalDischarge)
	set(&p.CriticalHighStep, c.CriticalHighStep)
	set(&p.WaitHigh, c.WaitHigh)
	set(&p.WaitLow, c.WaitLow)
	set(&p.Kp, c.Kp)
	set(&p.Kd, c.Kd)
	set(&p.NominalOpening, c.NominalOpening)
	return p
}

func hydraulicsConfig(c *config.HydraulicsConfig) hydraulics.Config {
	h := hydraulics.Config{
		Segments:         deref(c.Segments),
		LengthM:          deref(c.LengthM),
		DiameterMM:       deref(c.DiameterMM),
		HeatLossWPerM:    deref(c.HeatLossWPerM),
		SmoothingSeconds: deref(c.SmoothingSeconds),
		SubSteps:         deref(c.SubSteps),
		AmbientTemp:      c.AmbientTemp,
	}
	if c.Fluid != nil {
		h.Fluid = hydraulics.Fluid{
			Density:          c.Fluid.Density,
			SpecificHeat:     c.Fluid.SpecificHeat,
			LoopSpecificHeat: c.Fluid.LoopSpecificHeat,
		}
	}
	return h
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
