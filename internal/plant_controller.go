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
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/config"
	"github.com/antst/hpcascade/internal/db"
	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/plant"
	"github.com/antst/hpcascade/internal/safe_mqtt"
	"github.com/antst/hpcascade/internal/valve"
)

const (
	timerDuration   = 50 * time.Millisecond
	clientPrefix    = "hpcascade-"
	keyEnabled      = "enabled"
	keyValveMode    = "valve_mode"
	keyDischargeSet = "discharge_setpoint"
)

// request fields that can be set on the control topic
var overridable = []string{"demand", "electrical_cap", "inlet_temp", "volumetric_flow", "sink_power"}

// PlantController runs the plant on a fixed tick, fed by MQTT inputs and control
// topics, and keeps unit runtimes in the state database.
type PlantController struct {
	mu         sync.Mutex
	cfg        *config.Config
	queries    *db.Queries
	mqtt       safe_mqtt.MqttClient
	plant      *plant.Plant
	outside    *OutsideController
	inputs     *InputsController
	actuator   *ActuatorController
	overrides  map[string]float64
	forceChan  chan bool
	started    bool
	last       time.Duration
	lastReport plant.Report
}

// NewPlantController opens the state database, builds the plant and connects to the
// broker. configFile locates relative dataset paths.
func NewPlantController(cfg *config.Config, configFile string) (*PlantController, error) {
	q, err := db.Open(cfg.DBFile)
	if err != nil {
		return nil, err
	}
	client := safe_mqtt.InitMQTTClient(
		cfg.MQTTConfig.URL, clientPrefix+uuid.New().String(),
		safe_mqtt.Credentials{Username: cfg.MQTTConfig.Username, Password: cfg.MQTTConfig.Password},
	)
	c, err := newPlantController(cfg, q, client, filepath.Dir(configFile))
	if err != nil {
		client.Disconnect()
		q.Close()
		return nil, err
	}
	return c, nil
}

// NewSimulation builds an offline controller: no broker, sensors fall back to the
// configured values.
func NewSimulation(cfg *config.Config, q *db.Queries, configFile string) (*PlantController, error) {
	return newPlantController(cfg, q, nil, filepath.Dir(configFile))
}

func newPlantController(
	cfg *config.Config, q *db.Queries, client safe_mqtt.MqttClient, baseDir string,
) (*PlantController, error) {
	p, err := buildPlant(cfg, baseDir)
	if err != nil {
		return nil, err
	}

	c := &PlantController{
		cfg:       cfg,
		queries:   q,
		mqtt:      client,
		plant:     p,
		overrides: make(map[string]float64),
		forceChan: make(chan bool, childChanBuffer),
	}
	c.restore()

	if c.mqtt != nil {
		c.outside = NewOutsideController(cfg.Outside, cfg.MQTTConfig, c.mqtt, q)
		c.actuator = NewActuatorController(cfg.Actuator, c.mqtt)
		c.setupMQTTSubscriptions()
	}
	c.inputs = NewInputsController(cfg.Inputs, cfg.MQTTConfig, c.mqtt, q, nil)
	return c, nil
}

func (c *PlantController) setupMQTTSubscriptions() {
	controlTopic := c.cfg.MQTTConfig.ControlTopic
	topics := append([]string{
		"enable", "valve_mode", "valve_opening", "discharge_setpoint", "log_level", "reset",
	}, overridable...)
	for _, t := range topics {
		c.mqtt.SafeSubscribe(controlTopic+"/"+t, mqttQoS, c.controlUpdateHandler)
	}
}

// restore applies persisted unit runtimes and controller values.
func (c *PlantController) restore() {
	if c.queries == nil {
		return
	}
	ctx := context.Background()
	for _, st := range c.plant.Dispatcher().Snapshot() {
		s, err := c.queries.GetUnitState(ctx, st.Name)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				logger.L().Error(err)
			}
			continue
		}
		if err := c.plant.Restore(st.ID, s.Runtime(), int(s.OutOfEnvelope)); err != nil {
			logger.L().Error(err)
			continue
		}
		logger.L().Infof("Restored unit `%s`: runtime %v", st.Name, s.Runtime())
	}

	if v, err := c.readValue(keyEnabled); err == nil {
		if on, err := parseOnOff(v); err == nil {
			c.plant.SetEnabled(on)
		}
	}
	if v, err := c.readValue(keyValveMode); err == nil {
		if m, err := valve.ParseMode(v); err == nil {
			c.plant.SetValveMode(m)
		}
	}
	if v, err := c.readValue(keyDischargeSet); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.plant.SetDischargeSetpoint(f)
		}
	}
}

// Run cycles the plant on every tick until ctx is done. Control changes trigger an
// early cycle after a short debounce.
func (c *PlantController) Run(ctx context.Context) {
	start := time.Now()
	tick := *c.cfg.Tick
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	timer := time.NewTimer(timerDuration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L().Info("Plant controller stopped")
			return
		case <-c.forceChan:
			c.resetTimer(timer)
		case <-timer.C:
			c.Tick(time.Since(start))
		case <-ticker.C:
			c.Tick(time.Since(start))
		}
	}
}

func (c *PlantController) resetTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(timerDuration)
}

// Tick runs one cycle at plant time now. The first cycle uses the configured tick as
// its step.
func (c *PlantController) Tick(now time.Duration) (plant.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dt := now - c.last
	if !c.started {
		dt = *c.cfg.Tick
	}
	if dt <= 0 {
		return c.lastReport, errors.Errorf("plant time %v is not after %v", now, c.last)
	}

	rep, err := c.plant.Cycle(c.request(now, dt))
	if err != nil {
		logger.L().Errorf("Cycle at %v: %v", now, err)
		return rep, err
	}
	c.started = true
	c.last = now
	c.lastReport = rep

	for _, e := range rep.Faults() {
		logger.L().Warn(e)
	}
	logger.L().Debugf(
		"Cycle %v: demand %.2f kW, heat %.2f kW, COP %.2f, outlet %.2f",
		now, rep.Demand, rep.HeatOutputW/1e3, rep.COP, rep.Outlet,
	)

	c.persist(rep)
	if c.mqtt != nil {
		c.actuator.Update(rep)
		publishJSON(c.mqtt, c.cfg.MQTTConfig.StateTopic, false, c.telemetry(rep))
	}
	return rep, nil
}

func (c *PlantController) request(now, dt time.Duration) plant.Request {
	req := plant.Request{
		Now:            now,
		Dt:             dt,
		Ambient:        fallbackAmbient(c.cfg.Outside),
		OutletInit:     *c.cfg.Inputs.OutletInit,
		Demand:         c.value("demand"),
		ElectricalCap:  c.value("electrical_cap"),
		InletTemp:      c.value("inlet_temp"),
		VolumetricFlow: c.value("volumetric_flow"),
	}
	if c.outside != nil {
		req.Ambient = c.outside.Ambient()
	}
	if req.Demand == nil && req.ElectricalCap == nil {
		req.Demand = c.cfg.Inputs.DemandKW
	}
	if req.VolumetricFlow == nil {
		req.VolumetricFlow = c.cfg.Inputs.Flow
	}
	if req.VolumetricFlow != nil && *req.VolumetricFlow <= 0 {
		req.VolumetricFlow = nil
	}
	if sink := c.value("sink_power"); sink != nil {
		req.SinkPowerW = *sink
	}
	return req
}

// value prefers a control topic override over the bound input.
func (c *PlantController) value(name string) *float64 {
	if v, ok := c.overrides[name]; ok {
		return &v
	}
	return c.inputs.Get(name)
}

func (c *PlantController) persist(rep plant.Report) {
	if c.queries == nil {
		return
	}
	ctx := context.Background()
	for _, u := range rep.Units {
		runtime := u.Runtime
		if u.Running {
			runtime += rep.Now - u.LastStart
		}
		if err := c.queries.UpsertUnitState(ctx, db.UpsertUnitStateParams{
			UnitName:      u.Name,
			RuntimeNs:     int64(runtime),
			OutOfEnvelope: int64(u.Counters.OutOfEnvelope),
		}); err != nil {
			logger.L().Error(err)
		}
	}
}

func (c *PlantController) controlUpdateHandler(client mqtt.Client, message mqtt.Message) {
	topic := lastTopicLevel(message.Topic())
	payload := strings.TrimSpace(string(message.Payload()))
	logger.L().Infof("main: Got MQTT control request: %v : %v", topic, payload)

	if err := c.control(topic, payload); err != nil {
		logger.L().Error(err)
		return
	}
	select {
	case c.forceChan <- true:
	default:
	}
}

// control applies one control request.
func (c *PlantController) control(topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range overridable {
		if topic != name {
			continue
		}
		if payload == "" {
			delete(c.overrides, name)
			logger.L().Infof("Cleared %s override", name)
			return nil
		}
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return errors.Wrap(err, topic)
		}
		c.overrides[name] = v
		logger.L().Infof("Updated %s to %v", name, v)
		return nil
	}

	switch topic {
	case "enable":
		on, err := parseOnOff(payload)
		if err != nil {
			return err
		}
		c.plant.SetEnabled(on)
		c.publishActive(on)
		return c.writeValue(keyEnabled, strconv.FormatBool(on))
	case "valve_mode":
		m, err := valve.ParseMode(payload)
		if err != nil {
			return err
		}
		c.plant.SetValveMode(m)
		logger.L().Infof("Valve mode set to `%v`", m)
		return c.writeValue(keyValveMode, m.String())
	case "valve_opening":
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return errors.Wrap(err, topic)
		}
		c.plant.SetDirectOpening(v)
	case "discharge_setpoint":
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return errors.Wrap(err, topic)
		}
		c.plant.SetDischargeSetpoint(v)
		return c.writeValue(keyDischargeSet, payload)
	case "log_level":
		if err := logger.SetLogLevelString(payload); err != nil {
			return err
		}
		c.cfg.LogLevel = logger.Level()
		logger.L().Infof("Updated loglevel to `%v`", c.cfg.LogLevel.String())
	case "reset":
		for _, st := range c.plant.Dispatcher().Snapshot() {
			if st.Name == payload {
				logger.L().Infof("Fault of unit `%s` cleared", st.Name)
				return c.plant.Dispatcher().Reset(st.ID)
			}
		}
		return errors.Errorf("reset: unknown unit `%s`", payload)
	default:
		return errors.Errorf("unknown control topic `%s`", topic)
	}
	return nil
}

func (c *PlantController) publishActive(on bool) {
	if c.mqtt == nil {
		return
	}
	state := "OFF"
	if on {
		state = "ON"
	}
	c.mqtt.SafePublish(c.cfg.MQTTConfig.ControlTopic+"/active", mqttQoS, true, state)
}

func (c *PlantController) writeValue(name, value string) error {
	if c.queries == nil {
		return nil
	}
	return c.queries.UpsertControllerValue(
		context.Background(),
		db.UpsertControllerValueParams{Name: name, Value: value},
	)
}

func (c *PlantController) readValue(name string) (string, error) {
	return c.queries.GetControllerValue(context.Background(), name)
}

// Plant exposes the controlled plant; callers must not cycle it concurrently with Run.
func (c *PlantController) Plant() *plant.Plant { return c.plant }

// Close releases the broker connection and the database.
func (c *PlantController) Close() {
	if c.mqtt != nil {
		c.mqtt.Disconnect()
	}
	if c.outside != nil {
		c.outside.Close()
	}
	if c.queries != nil {
		if err := c.queries.Close(); err != nil {
			logger.L().Error(err)
		}
	}
}
