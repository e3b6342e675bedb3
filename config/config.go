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
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL    bool   `json:"ssl" envconfig:"SURGE_SERVER_SSL"`
	Secure bool   `json:"secure" envconfig:"SURGE_SERVER_SECURE"`
	Domain string `json:"domain" envconfig:"SURGE_SERVER_SSL_DOMAIN"`
	Email  string `json:"ssl_email" envconfig:"SURGE_SERVER_SSL_EMAIL"`
	Port   string `json:"port" envconfig:"SURGE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SURGE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"SURGE_REDIS_DNS"`
}

type JwtConfig struct {
	Secret      string `json:"secret" envconfig:"SURGE_JWT_SECRET"`
	ExpireHours int    `json:"expire_hours" envconfig:"SURGE_JWT_EXPIRE_HOURS"`
	// Whitelist lists request paths that skip token verification.
	Whitelist []string `json:"whitelist"`
}

type RateLimitConfig struct {
	ReservationQPS float64 `json:"reservation_qps" envconfig:"SURGE_RATE_LIMIT_RESERVATION_QPS"`
	CatalogQPS     float64 `json:"catalog_qps" envconfig:"SURGE_RATE_LIMIT_CATALOG_QPS"`
	OrderQPS       float64 `json:"order_qps" envconfig:"SURGE_RATE_LIMIT_ORDER_QPS"`
	PerGoodsQPS    float64 `json:"per_goods_qps" envconfig:"SURGE_RATE_LIMIT_PER_GOODS_QPS"`
	WarmUpSec      int     `json:"warm_up_sec" envconfig:"SURGE_RATE_LIMIT_WARM_UP_SEC"`
}

type OrderConfig struct {
	PaymentWindowMinutes int `json:"payment_window_minutes" envconfig:"SURGE_ORDER_PAYMENT_WINDOW_MINUTES"`
}

type QueueConfig struct {
	ReservationTopic string `json:"reservation_topic" envconfig:"SURGE_QUEUE_RESERVATION_TOPIC"`
	TimeoutTopic     string `json:"timeout_topic" envconfig:"SURGE_QUEUE_TIMEOUT_TOPIC"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"SURGE_QUEUE_MONITORING_PORT"`
}

type SnowflakeConfig struct {
	DatacenterID int64  `json:"datacenter_id" envconfig:"SURGE_SNOWFLAKE_DATACENTER_ID"`
	InstanceID   string `json:"instance_id" envconfig:"SURGE_SNOWFLAKE_INSTANCE_ID"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"SURGE_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"SURGE_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"SURGE_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Jwt             JwtConfig        `json:"jwt"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Order           OrderConfig      `json:"order"`
	Queue           QueueConfig      `json:"queue"`
	Snowflake       SnowflakeConfig  `json:"snowflake"`
	Notification    Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("surge", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called surge.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Surge Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Jwt.Secret == "" {
		log.Println("Error: JWT secret is empty. It's a required field.")
		return errors.New("jwt secret is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Jwt.ExpireHours <= 0 {
		cnf.Jwt.ExpireHours = 24
	}
	if len(cnf.Jwt.Whitelist) == 0 {
		cnf.Jwt.Whitelist = []string{"/health", "/user/login", "/user/register"}
	}

	if cnf.RateLimit.ReservationQPS <= 0 {
		cnf.RateLimit.ReservationQPS = 1000
	}
	if cnf.RateLimit.CatalogQPS <= 0 {
		cnf.RateLimit.CatalogQPS = 2000
	}
	if cnf.RateLimit.OrderQPS <= 0 {
		cnf.RateLimit.OrderQPS = 500
	}
	if cnf.RateLimit.PerGoodsQPS <= 0 {
		cnf.RateLimit.PerGoodsQPS = 100
	}
	if cnf.RateLimit.WarmUpSec <= 0 {
		cnf.RateLimit.WarmUpSec = 10
	}

	if cnf.Order.PaymentWindowMinutes <= 0 {
		cnf.Order.PaymentWindowMinutes = 15
		log.Printf("Warning: Payment window not specified. Setting default: %d minutes", cnf.Order.PaymentWindowMinutes)
	}

	if cnf.Queue.ReservationTopic == "" {
		cnf.Queue.ReservationTopic = "seckill-order-topic"
	}
	if cnf.Queue.TimeoutTopic == "" {
		cnf.Queue.TimeoutTopic = "order-timeout-topic"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5002"
	}

	if cnf.Snowflake.DatacenterID < 0 || cnf.Snowflake.DatacenterID > 31 {
		log.Println("Error: Snowflake datacenter id must be in [0, 31].")
		return errors.New("snowflake datacenter id out of range")
	}
	if cnf.Snowflake.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "surge"
		}
		cnf.Snowflake.InstanceID = host
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyTestDefaults()
	ConfigStore.Store(mockConfig)
}

func (cnf *Configuration) applyTestDefaults() {
	if cnf.Jwt.ExpireHours <= 0 {
		cnf.Jwt.ExpireHours = 24
	}
	if cnf.Order.PaymentWindowMinutes <= 0 {
		cnf.Order.PaymentWindowMinutes = 15
	}
	if cnf.Queue.ReservationTopic == "" {
		cnf.Queue.ReservationTopic = "seckill-order-topic"
	}
	if cnf.Queue.TimeoutTopic == "" {
		cnf.Queue.TimeoutTopic = "order-timeout-topic"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5002"
	}
	if cnf.Snowflake.InstanceID == "" {
		cnf.Snowflake.InstanceID = "test-instance"
	}
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
