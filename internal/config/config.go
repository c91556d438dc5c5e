package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Server struct {
	ServiceName       string
	LogLevel          string
	HTTPAddr          string
	GRPCAddr          string
	StoreDriver       string
	MySQLDSN          string
	RedisAddr         string
	AMQPURL           string
	LockRetries       int
	ReconcileInterval time.Duration
	EventRetention    time.Duration
	DedupTTL          time.Duration
	Stores            []string
}

type Agent struct {
	ServiceName     string
	LogLevel        string
	ServerAddr      string
	LocalAddr       string
	StoreID         string
	DeviceID        string
	OutboxPath      string
	RefreshInterval time.Duration
	FlushInterval   time.Duration
}

// LoadServer reads server settings from the environment, after loading an
// optional .env file from the working directory.
func LoadServer() *Server {
	v := newViper()
	v.SetDefault("service_name", "inventory")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("store_driver", "mysql")
	v.SetDefault("mysql_dsn", "root:root@tcp(localhost:3306)/inventory?parseTime=true")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("amqp_url", "")
	v.SetDefault("lock_retries", 3)
	v.SetDefault("reconcile_interval", 10*time.Minute)
	v.SetDefault("event_retention", 30*24*time.Hour)
	v.SetDefault("dedup_ttl", 24*time.Hour)
	v.SetDefault("stores", []string{})

	return &Server{
		ServiceName:       v.GetString("service_name"),
		LogLevel:          v.GetString("log_level"),
		HTTPAddr:          v.GetString("http_addr"),
		GRPCAddr:          v.GetString("grpc_addr"),
		StoreDriver:       v.GetString("store_driver"),
		MySQLDSN:          v.GetString("mysql_dsn"),
		RedisAddr:         v.GetString("redis_addr"),
		AMQPURL:           v.GetString("amqp_url"),
		LockRetries:       v.GetInt("lock_retries"),
		ReconcileInterval: v.GetDuration("reconcile_interval"),
		EventRetention:    v.GetDuration("event_retention"),
		DedupTTL:          v.GetDuration("dedup_ttl"),
		Stores:            v.GetStringSlice("stores"),
	}
}

func LoadAgent() *Agent {
	v := newViper()
	v.SetDefault("service_name", "pos-agent")
	v.SetDefault("server_addr", "localhost:50051")
	v.SetDefault("local_addr", "127.0.0.1:8090")
	v.SetDefault("store_id", "")
	v.SetDefault("device_id", "")
	v.SetDefault("outbox_path", "outbox.db")
	v.SetDefault("refresh_interval", time.Minute)
	v.SetDefault("flush_interval", 15*time.Second)

	return &Agent{
		ServiceName:     v.GetString("service_name"),
		LogLevel:        v.GetString("log_level"),
		ServerAddr:      v.GetString("server_addr"),
		LocalAddr:       v.GetString("local_addr"),
		StoreID:         v.GetString("store_id"),
		DeviceID:        v.GetString("device_id"),
		OutboxPath:      v.GetString("outbox_path"),
		RefreshInterval: v.GetDuration("refresh_interval"),
		FlushInterval:   v.GetDuration("flush_interval"),
	}
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("log_level", "info")
	v.AutomaticEnv()
	return v
}
