package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Kafka    KafkaConfig
		Redis    RedisConfig
		Fees     FeesConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	KafkaConfig struct {
		Brokers []string
		Topic   string
	}

	RedisConfig struct {
		Addr          string
		EnrollmentTTL time.Duration
	}

	FeesConfig struct {
		// ReminderWindowDays is how many days ahead an installment counts as upcoming.
		ReminderWindowDays int
	}
)

// Address returns the "host:port" the database listens on.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// NewConfig loads the configuration from the environment, optionally seeded by `config/.env.<env>`.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Franchise Fees")
	conf.SetDefault("secretKey", "b2v#qk8r-7w!n$x1=fee&plan^m3zt9(d0)c@4uy")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("frontendBaseURL", "http://localhost:8080")
	conf.SetDefault("defaultFromEmail", "Franchise Fees <noreply@localhost>")

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 8*time.Hour)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "franchise_fees")
	conf.SetDefault("dbUser", "fees")
	conf.SetDefault("dbPassword", "fees")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("kafkaBrokers", "")
	conf.SetDefault("kafkaTopic", "fee-events")

	conf.SetDefault("redisAddr", "")
	conf.SetDefault("redisEnrollmentTTL", 5*time.Minute)

	conf.SetDefault("feeReminderWindowDays", 3)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            conf.GetString("build"),
		Debug:            conf.GetBool("debug"),
		TestMode:         conf.GetBool("testMode"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		defaultFromEmail: conf.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			Address:            conf.GetString("serverAddress"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(conf.GetString("kafkaBrokers")),
			Topic:   conf.GetString("kafkaTopic"),
		},
		Redis: RedisConfig{
			Addr:          conf.GetString("redisAddr"),
			EnrollmentTTL: conf.GetDuration("redisEnrollmentTTL"),
		},
		Fees: FeesConfig{
			ReminderWindowDays: conf.GetInt("feeReminderWindowDays"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: no external services, fixed secret.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Franchise Fees",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:8080",
		defaultFromEmail: "noreply@test.local",
		Server: ServerConfig{
			Address:            ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Kafka: KafkaConfig{Topic: "fee-events"},
		Fees:  FeesConfig{ReminderWindowDays: 3},
	}
}

func splitList(s string) []string {
	var list []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func (c *Config) String() string {
	return fmt.Sprintf("%s[%s] env=%s debug=%t", c.AppName, c.Build, c.Env, c.Debug)
}
