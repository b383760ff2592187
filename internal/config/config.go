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

package config

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pborman/getopt/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/antst/hpcascade/internal/logger"
)

const (
	defaultMQTTURL      = "tcp://127.0.0.1:1883"
	defaultControlTopic = "hpcascade/control"
	defaultStateTopic   = "hpcascade/state"
	defaultDBFile       = "~/.hpcascade.db"
	defaultConfigFile   = "config.yaml"
	defaultTick         = 10 * time.Second
	DefaultAverageType  = "mean"
)

type Config struct {
	LogLevel   zapcore.Level     `yaml:"log_level"`
	MQTTConfig *MQTTConfig       `yaml:"mqtt"`
	DBFile     string            `yaml:"db_file"`
	Tick       *time.Duration    `yaml:"tick"`
	Plant      *PlantConfig      `yaml:"plant"`
	Valve      *ValveConfig      `yaml:"valve,omitempty"`
	Hydraulics *HydraulicsConfig `yaml:"hydraulics"`
	Inputs     *InputsConfig     `yaml:"inputs"`
	Outside    *OutsideConfig    `yaml:"outside"`
	Actuator   *ActuatorConfig   `yaml:"actuator"`

	// ConfigFile and Simulate come from the command line.
	ConfigFile string `yaml:"-"`
	Simulate   int    `yaml:"-"`
}

func defConfig() *Config {
	return &Config{
		MQTTConfig: NewMQTTConfig(),
		DBFile:     defaultDBFile,
		Tick:       GetPTR(defaultTick),
		Plant:      NewPlantConfig(),
		Hydraulics: NewHydraulicsConfig(),
		Inputs:     NewInputsConfig(),
		Outside:    NewOutsideConfig(),
		Actuator:   NewActuatorConfig(),
	}
}

func prettyPrint(cfg *Config) {
	shown := *cfg
	if cfg.MQTTConfig != nil && cfg.MQTTConfig.Password != "" {
		m := *cfg.MQTTConfig
		m.Password = "***"
		shown.MQTTConfig = &m
	}
	d, err := yaml.Marshal(&shown)
	if err != nil {
		logger.L().Error("Failed to marshal config for pretty print", err)
		return
	}
	logger.L().Debugf("--- Config ---\n%s\n\n", string(d))
}

// FillDefaults completes sections a config file left out or set to null.
func (cfg *Config) FillDefaults() {
	if cfg.MQTTConfig == nil {
		cfg.MQTTConfig = NewMQTTConfig()
	}
	cfg.MQTTConfig.FillDefaults()

	if cfg.DBFile == "" {
		cfg.DBFile = defaultDBFile
	}
	if cfg.Tick == nil || *cfg.Tick <= 0 {
		cfg.Tick = GetPTR(defaultTick)
	}

	if cfg.Plant == nil {
		cfg.Plant = NewPlantConfig()
	}
	cfg.Plant.FillDefaults(cfg.Valve)

	if cfg.Hydraulics == nil {
		cfg.Hydraulics = NewHydraulicsConfig()
	}
	cfg.Hydraulics.FillDefaults()

	if cfg.Inputs == nil {
		cfg.Inputs = NewInputsConfig()
	}
	cfg.Inputs.FillDefaults()

	if cfg.Outside == nil {
		cfg.Outside = NewOutsideConfig()
	}
	cfg.Outside.FillDefaults()

	if cfg.Actuator == nil {
		cfg.Actuator = NewActuatorConfig()
	}
	cfg.Actuator.FillDefaults()
}

// Load reads a config file and fills the defaults. A missing file yields the defaults.
func Load(configFile string) (*Config, error) {
	cfg := defConfig()
	if err := readFile(cfg, configFile); err != nil {
		return nil, err
	}
	cfg.FillDefaults()
	return cfg, nil
}

func Get() *Config {
	logLevel := getopt.StringLong("log-level", 'l', "", "log levels: debug, info, warn, error, dpanic, panic, fatal")
	configFile := getopt.StringLong("config", 'c', defaultConfigFile, "config file pathname")
	dbFile := getopt.StringLong("db", 'd', "", "DB file pathname")
	simulate := getopt.IntLong("simulate", 's', 0, "run N ticks offline, without MQTT")
	help := getopt.BoolLong("help", 'h', "show usage")

	getopt.Parse()
	if *help {
		getopt.Usage()
		os.Exit(0)
	}

	cfg, err := Load(*configFile)
	if err != nil {
		log.Panicf("GetConfig: %v", err)
	}
	logger.L().Infof("Using config file `%v`", *configFile)

	if *dbFile != "" {
		cfg.DBFile = *dbFile
	}
	logger.L().Infof("Using DB file `%v`", cfg.DBFile)

	cfg.ConfigFile = *configFile
	cfg.Simulate = *simulate

	if *logLevel != "" {
		if err := cfg.LogLevel.Set(*logLevel); err != nil {
			logger.L().Errorf("Wrong log level `%v`: %v", *logLevel, err)
		}
	}
	logger.SetLogLevel(cfg.LogLevel)

	prettyPrint(cfg)

	return cfg
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func readFile(cfg *Config, configFileName string) error {
	if !fileExists(configFileName) {
		return nil
	}

	f, err := os.Open(configFileName)
	if err != nil {
		return errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrap(err, "failed to unmarshal config")
		}
	}

	return nil
}

func GetPTR[T any](v T) *T {
	return &v
}
