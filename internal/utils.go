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
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/antst/hpcascade/internal/logger"
	"github.com/antst/hpcascade/internal/safe_mqtt"
)

const mqttQoS = 1

var zeroTS time.Time

func init() {
	zeroTS = time.UnixMicro(0)
}

func extractF64PlainOrJson(message mqtt.Message, JSONEntry *string) (float64, error) {
	if JSONEntry == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(string(message.Payload())), 64)
		return v, errors.Wrapf(err, "%v", message.Topic())
	}

	var valMap map[string]interface{}
	if err := json.Unmarshal(message.Payload(), &valMap); err != nil {
		return 0, errors.Wrapf(err, "json unmarshal error with : %v : %v", message.Topic(), string(message.Payload()))
	}

	v, ok := valMap[*JSONEntry]
	if !ok {
		return 0, errors.Errorf("not found: `%v` in `%v`: %v", *JSONEntry, message.Topic(), string(message.Payload()))
	}

	t0, ok := v.(float64)
	if !ok {
		return 0, errors.Errorf("cannot cast `%v` to float64 in : %v : %v", v, message.Topic(), string(message.Payload()))
	}

	return t0, nil
}

// lastTopicLevel returns the part of the topic after the last slash.
func lastTopicLevel(topic string) string {
	return topic[strings.LastIndex(topic, "/")+1:]
}

func parseOnOff(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	}
	return false, errors.Errorf("invalid on/off value %q", val)
}

func publishJSON(client safe_mqtt.MqttClient, topic string, retained bool, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.L().Error(errors.Wrapf(err, "marshal %s", topic))
		return
	}
	if token := client.SafePublish(topic, mqttQoS, retained, data); token.Wait() && token.Error() != nil {
		logger.L().Error(token.Error())
	}
}
