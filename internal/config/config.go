package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogQueries      bool

	MQTTBroker       string
	MQTTPort         int
	MQTTClientID     string
	MQTTUsername     string
	MQTTPassword     string
	StatestreamTopic string
	DiscoveryPrefix  string
	BaseTopic        string

	// EntriesFile is an optional YAML file of declarative entries, reloaded on change.
	// Relative paths are resolved against the process working directory at startup.
	EntriesFile string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":8080")

	sqliteDriver := envOr("SQLITE_DRIVER", "sqlite3")
	sqliteDSN := strings.TrimSpace(os.Getenv("SQLITE_DSN"))
	sqlitePath := envOr("SQLITE_PATH", "data/dewpoint.db")

	maxOpenConns, err := intEnv("SQLITE_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intEnv("SQLITE_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Config{}, err
	}

	connMaxLifetimeStr := envOr("SQLITE_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	logQueriesStr := envOr("SQLITE_LOG_QUERIES", "false")
	logQueries, err := strconv.ParseBool(logQueriesStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_LOG_QUERIES %q: %w", logQueriesStr, err)
	}

	mqttBroker := envOr("MQTT_BROKER", "localhost")
	mqttPort, err := intEnv("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT must be in 1-65535, got %d", mqttPort)
	}
	mqttClientID := envOr("MQTT_CLIENT_ID", "dewpoint-bridge")

	statestream, err := topicEnv("MQTT_STATESTREAM_PREFIX", "homeassistant/statestream")
	if err != nil {
		return Config{}, err
	}
	discovery, err := topicEnv("MQTT_DISCOVERY_PREFIX", "homeassistant")
	if err != nil {
		return Config{}, err
	}
	baseTopic, err := topicEnv("MQTT_BASE_TOPIC", "dewpoint")
	if err != nil {
		return Config{}, err
	}

	entriesFile := strings.TrimSpace(os.Getenv("ENTRIES_FILE"))
	if entriesFile != "" {
		entriesFile, err = filepath.Abs(entriesFile)
		if err != nil {
			return Config{}, fmt.Errorf("ENTRIES_FILE %q: %w", entriesFile, err)
		}
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		SQLiteDriver:          sqliteDriver,
		SQLiteDSN:             sqliteDSN,
		SQLitePath:            sqlitePath,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogQueries:      logQueries,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTUsername:          strings.TrimSpace(os.Getenv("MQTT_USERNAME")),
		MQTTPassword:          os.Getenv("MQTT_PASSWORD"),
		StatestreamTopic:      statestream,
		DiscoveryPrefix:       discovery,
		BaseTopic:             baseTopic,
		EntriesFile:           entriesFile,
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key, def string) (int, error) {
	s := envOr(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

// topicEnv reads an MQTT topic prefix; wildcards are rejected and surrounding
// slashes dropped.
func topicEnv(key, def string) (string, error) {
	s := strings.Trim(envOr(key, def), "/")
	if s == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	if strings.ContainsAny(s, "#+") {
		return "", fmt.Errorf("invalid %s %q: wildcards are not allowed", key, s)
	}
	return s, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
