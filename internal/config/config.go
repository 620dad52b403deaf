package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	SMS       SMSConfig
	Gateways  GatewayConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type SMSConfig struct {
	// Command is the token the tracker firmware answers with a
	// position SMS ("LOC" for most boards, "URL#" for some).
	Command string
}

type GatewayConfig struct {
	CloudAPI         CloudAPIConfig
	MessagingService MessagingServiceConfig
	Batch            BatchConfig
	LocalBridge      LocalBridgeConfig
	SerialModem      SerialModemConfig
	DeviceBridge     DeviceBridgeConfig
}

type CloudAPIConfig struct {
	APIKey  string
	BaseURL string
}

type MessagingServiceConfig struct {
	AccessKey  string
	Originator string
	BaseURL    string
}

type BatchConfig struct {
	ServicePlanID string
	APIToken      string
	FromNumber    string
	BaseURL       string
}

type LocalBridgeConfig struct {
	BaseURL string
	Token   string
}

type SerialModemConfig struct {
	Port     string
	BaudRate int
}

type DeviceBridgeConfig struct {
	ADBPath string
}

func LoadAll() (*Config, error) {
	var errs []error

	databaseURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		errs = append(errs, err)
	}

	intervalSec, err := getEnvInt("UPDATE_INTERVAL_SECONDS", 10)
	if err != nil {
		errs = append(errs, err)
	}
	if intervalSec < 5 {
		errs = append(errs, fmt.Errorf("UPDATE_INTERVAL_SECONDS must be >= 5, got %d", intervalSec))
	}

	baudRate, err := getEnvInt("GSM_BAUD_RATE", 9600)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: databaseURL,
		},
		Redis: redisCfg,
		Scheduler: SchedulerConfig{
			Interval: time.Duration(intervalSec) * time.Second,
		},
		SMS: SMSConfig{
			Command: getEnv("LOCATION_COMMAND", "LOC"),
		},
		Gateways: GatewayConfig{
			CloudAPI: CloudAPIConfig{
				APIKey:  os.Getenv("SMSMOBILEAPI_KEY"),
				BaseURL: os.Getenv("SMSMOBILEAPI_URL"),
			},
			MessagingService: MessagingServiceConfig{
				AccessKey:  os.Getenv("MESSAGEBIRD_API_KEY"),
				Originator: getEnv("MESSAGEBIRD_ORIGINATOR", "MessageBird"),
				BaseURL:    os.Getenv("MESSAGEBIRD_API_URL"),
			},
			Batch: BatchConfig{
				ServicePlanID: os.Getenv("SINCH_SERVICE_PLAN_ID"),
				APIToken:      os.Getenv("SINCH_API_TOKEN"),
				FromNumber:    getEnv("SINCH_FROM_NUMBER", "447418631073"),
				BaseURL:       os.Getenv("SINCH_API_URL"),
			},
			LocalBridge: LocalBridgeConfig{
				BaseURL: os.Getenv("ANDROID_SMS_GATEWAY_URL"),
				Token:   os.Getenv("ANDROID_SMS_GATEWAY_TOKEN"),
			},
			SerialModem: SerialModemConfig{
				Port:     os.Getenv("GSM_SERIAL_PORT"),
				BaudRate: baudRate,
			},
			DeviceBridge: DeviceBridgeConfig{
				ADBPath: getEnv("ADB_PATH", "adb"),
			},
		},
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
