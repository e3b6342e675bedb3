/*
Copyright 2025 Surge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surge.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"project_name": "surge-test",
		"data_source": {"dns": "postgres://localhost:5432/surge"},
		"redis": {"dns": "localhost:6379"},
		"jwt": {"secret": "s3cret"}
	}`)

	require.NoError(t, InitConfig(path))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, 24, cnf.Jwt.ExpireHours)
	assert.Equal(t, float64(1000), cnf.RateLimit.ReservationQPS)
	assert.Equal(t, float64(100), cnf.RateLimit.PerGoodsQPS)
	assert.Equal(t, 15, cnf.Order.PaymentWindowMinutes)
	assert.Equal(t, "seckill-order-topic", cnf.Queue.ReservationTopic)
	assert.Equal(t, "order-timeout-topic", cnf.Queue.TimeoutTopic)
	assert.NotEmpty(t, cnf.Snowflake.InstanceID)
	assert.Contains(t, cnf.Jwt.Whitelist, "/health")
}

func TestInitConfigRequiredFields(t *testing.T) {
	missingRedis := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/surge"},
		"jwt": {"secret": "s3cret"}
	}`)
	assert.Error(t, InitConfig(missingRedis))

	missingSecret := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/surge"},
		"redis": {"dns": "localhost:6379"}
	}`)
	assert.Error(t, InitConfig(missingSecret))
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/surge"},
		"redis": {"dns": "localhost:6379"},
		"jwt": {"secret": "s3cret"},
		"server": {"port": "5001"}
	}`)

	t.Setenv("SURGE_SERVER_PORT", "8080")
	t.Setenv("SURGE_ORDER_PAYMENT_WINDOW_MINUTES", "30")

	require.NoError(t, InitConfig(path))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "8080", cnf.Server.Port)
	assert.Equal(t, 30, cnf.Order.PaymentWindowMinutes)
}

func TestInitConfigRejectsBadDatacenterID(t *testing.T) {
	path := writeConfigFile(t, `{
		"data_source": {"dns": "postgres://localhost:5432/surge"},
		"redis": {"dns": "localhost:6379"},
		"jwt": {"secret": "s3cret"},
		"snowflake": {"datacenter_id": 99}
	}`)
	assert.Error(t, InitConfig(path))
}
