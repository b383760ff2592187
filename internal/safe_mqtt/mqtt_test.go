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

package safe_mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	opts := clientOptions("tcp://127.0.0.1:1883", "hpcascade-test", Credentials{})
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://127.0.0.1:1883", opts.Servers[0].String())
	assert.Equal(t, "hpcascade-test", opts.ClientID)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, reconnectInterval, opts.MaxReconnectInterval)
	assert.Empty(t, opts.Username)

	opts = clientOptions("tcp://broker:1883", "id", Credentials{Username: "plant", Password: "secret"})
	assert.Equal(t, "plant", opts.Username)
	assert.Equal(t, "secret", opts.Password)
}
